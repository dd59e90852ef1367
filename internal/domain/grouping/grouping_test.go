package grouping_test

import (
	"testing"

	"github.com/okian/tally/internal/domain/grouping"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func vote(id, precinct string) model.Vote {
	return model.Vote{
		VoterID:  id,
		Precinct: precinct,
		Selections: map[model.Role]model.Selection{
			model.RoleMayor: model.SingleChoice{Candidate: "X"},
		},
	}
}

func precincts(groups []model.PrecinctGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Precinct
	}
	return out
}

func TestByPrecinct(t *testing.T) {
	Convey("Given finalized and pending votes over overlapping precincts", t, func() {
		finalized := []model.Vote{vote("1", "B"), vote("2", "A"), vote("3", "B")}
		var pending model.PendingSet
		pending.Add("C", vote("4", ""))
		pending.Add("A", vote("5", ""))

		Convey("When grouping", func() {
			groups, err := grouping.ByPrecinct(finalized, pending)

			Convey("Then the precinct set is the union without duplicates", func() {
				So(err, ShouldBeNil)
				So(precincts(groups), ShouldResemble, []string{"B", "A", "C"})
			})

			Convey("And each group carries its mined and pending votes", func() {
				b, _ := grouping.Find(groups, "B")
				So(len(b.Mined), ShouldEqual, 2)
				So(len(b.Pending), ShouldEqual, 0)

				a, _ := grouping.Find(groups, "A")
				So(len(a.Mined), ShouldEqual, 1)
				So(len(a.Pending), ShouldEqual, 1)

				c, _ := grouping.Find(groups, "C")
				So(c.Mined, ShouldResemble, []model.Vote{})
				So(len(c.Pending), ShouldEqual, 1)
			})

			Convey("And grouping again yields identical output", func() {
				again, err := grouping.ByPrecinct(finalized, pending)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, groups)
			})

			Convey("And summaries count both sides", func() {
				So(grouping.Summarize(groups), ShouldResemble, []grouping.Summary{
					{Precinct: "B", Mined: 2, Pending: 0},
					{Precinct: "A", Mined: 1, Pending: 1},
					{Precinct: "C", Mined: 0, Pending: 1},
				})
			})
		})
	})

	Convey("Given no finalized votes and one pending precinct", t, func() {
		var pending model.PendingSet
		v1 := vote("v1", "")
		pending.Add("BrgyA", v1)

		groups, err := grouping.ByPrecinct(nil, pending)

		Convey("Then there is one pending-only group", func() {
			So(err, ShouldBeNil)
			So(len(groups), ShouldEqual, 1)
			So(groups[0].Precinct, ShouldEqual, "BrgyA")
			So(groups[0].Mined, ShouldResemble, []model.Vote{})
			So(len(groups[0].Pending), ShouldEqual, 1)
			So(groups[0].Pending[0].VoterID, ShouldEqual, "v1")
		})
	})

	Convey("Given a pending precinct with an empty list", t, func() {
		var pending model.PendingSet
		pending.Add("Empty")

		groups, err := grouping.ByPrecinct(nil, pending)

		Convey("Then the precinct is still listed", func() {
			So(err, ShouldBeNil)
			So(precincts(groups), ShouldResemble, []string{"Empty"})
		})
	})

	Convey("Given a finalized vote without a precinct", t, func() {
		groups, err := grouping.ByPrecinct([]model.Vote{vote("1", "  ")}, model.PendingSet{})

		Convey("Then it is grouped under Unknown", func() {
			So(err, ShouldBeNil)
			So(precincts(groups), ShouldResemble, []string{model.UnknownPrecinct})
		})
	})

	Convey("Given both sources empty", t, func() {
		groups, err := grouping.ByPrecinct(nil, model.PendingSet{})

		Convey("Then the no-data condition is signalled", func() {
			So(err, ShouldEqual, grouping.ErrNoData)
			So(groups, ShouldBeNil)
		})
	})
}
