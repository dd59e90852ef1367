package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRole(t *testing.T) {
	Convey("Given the role enumeration", t, func() {
		Convey("Then display order is Mayor, Vice Mayor, Councilor", func() {
			So(model.Roles, ShouldResemble, []model.Role{model.RoleMayor, model.RoleViceMayor, model.RoleCouncilor})
		})

		Convey("Then only Councilor is multi-select", func() {
			So(model.RoleMayor.Policy(), ShouldEqual, model.SingleSelect)
			So(model.RoleViceMayor.Policy(), ShouldEqual, model.SingleSelect)
			So(model.RoleCouncilor.Policy(), ShouldEqual, model.MultiSelect)
		})

		Convey("Then wire names round-trip", func() {
			for _, role := range model.Roles {
				parsed, ok := model.ParseRole(role.String())
				So(ok, ShouldBeTrue)
				So(parsed, ShouldEqual, role)
			}
			_, ok := model.ParseRole("Governor")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestVoteJSON(t *testing.T) {
	Convey("Given a vote document from the service", t, func() {
		doc := `{"voter_id":"*****","candidates":{"Mayor":"X","Vice Mayor":"Y","Councilor":["A","B","A"],"Governor":"Z"}}`

		Convey("When decoding it", func() {
			var v model.Vote
			err := json.Unmarshal([]byte(doc), &v)

			Convey("Then single and multi selections are typed", func() {
				So(err, ShouldBeNil)
				So(v.VoterID, ShouldEqual, "*****")
				So(v.Selection(model.RoleMayor), ShouldResemble, model.SingleChoice{Candidate: "X"})
				So(v.Choices(model.RoleViceMayor), ShouldResemble, []string{"Y"})
				So(v.Choices(model.RoleCouncilor), ShouldResemble, []string{"A", "B"})
				So(len(v.Selections), ShouldEqual, 3)
			})

			Convey("And a missing precinct groups as Unknown", func() {
				So(v.PrecinctOrUnknown(), ShouldEqual, model.UnknownPrecinct)
			})
		})

		Convey("When a selection has an unsupported shape", func() {
			var v model.Vote
			err := json.Unmarshal([]byte(`{"voter_id":"1","candidates":{"Mayor":42}}`), &v)

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a vote built in code", t, func() {
		v := model.Vote{
			VoterID:  "v-1",
			Precinct: "Poblacion",
			Selections: map[model.Role]model.Selection{
				model.RoleMayor:     model.SingleChoice{Candidate: "X"},
				model.RoleViceMayor: model.SingleChoice{Candidate: "Y"},
			},
		}

		Convey("When encoding it for POST /vote", func() {
			data, err := json.Marshal(v)
			So(err, ShouldBeNil)

			var got map[string]any
			So(json.Unmarshal(data, &got), ShouldBeNil)

			Convey("Then the councilor list is present even when empty", func() {
				So(got["barangay"], ShouldEqual, "Poblacion")
				candidates := got["candidates"].(map[string]any)
				So(candidates["Mayor"], ShouldEqual, "X")
				So(candidates["Vice Mayor"], ShouldEqual, "Y")
				So(candidates["Councilor"], ShouldResemble, []any{})
			})
		})
	})
}

func TestPendingSet(t *testing.T) {
	Convey("Given a pending document", t, func() {
		doc := `{"Zeta":[{"voter_id":"1","candidates":{"Mayor":"X"}}],"Alpha":[],"Mid":[{"voter_id":"2","candidates":{}}]}`

		Convey("When decoding it", func() {
			var p model.PendingSet
			So(json.Unmarshal([]byte(doc), &p), ShouldBeNil)

			Convey("Then precinct order follows the document", func() {
				So(p.Precincts(), ShouldResemble, []string{"Zeta", "Alpha", "Mid"})
				So(p.Len(), ShouldEqual, 2)
			})

			Convey("And votes are labelled with their precinct", func() {
				So(p.Votes("Zeta")[0].Precinct, ShouldEqual, "Zeta")
			})

			Convey("And encoding keeps the order", func() {
				data, err := json.Marshal(p)
				So(err, ShouldBeNil)
				var again model.PendingSet
				So(json.Unmarshal(data, &again), ShouldBeNil)
				So(again.Precincts(), ShouldResemble, p.Precincts())
			})
		})

		Convey("When the document is null", func() {
			var p model.PendingSet
			So(json.Unmarshal([]byte(`null`), &p), ShouldBeNil)
			So(p.Len(), ShouldEqual, 0)
		})
	})
}

func TestFinalizedVotes(t *testing.T) {
	Convey("Given blocks from the masked chain", t, func() {
		blocks := []model.Block{
			{Index: 1, Precinct: "A", Votes: []model.Vote{{VoterID: "1"}, {VoterID: "2"}}},
			{Index: 2, Precinct: "", Votes: []model.Vote{{VoterID: "3"}}},
		}

		Convey("Then flattening labels votes with the block precinct", func() {
			votes := model.FinalizedVotes(blocks)
			So(len(votes), ShouldEqual, 3)
			So(votes[0].Precinct, ShouldEqual, "A")
			So(votes[2].PrecinctOrUnknown(), ShouldEqual, model.UnknownPrecinct)
		})
	})
}

func TestRoster(t *testing.T) {
	Convey("Given a roster document with an unknown role", t, func() {
		var r model.Roster
		err := json.Unmarshal([]byte(`{"Mayor":["X","Y","X"],"Governor":["Z"],"Councilor":[]}`), &r)

		Convey("Then known roles are kept in display order", func() {
			So(err, ShouldBeNil)
			So(r.Roles(), ShouldResemble, []model.Role{model.RoleMayor, model.RoleCouncilor})
			So(r.Candidates(model.RoleMayor), ShouldResemble, []string{"X", "Y"})
			So(r.IgnoredRoles(), ShouldResemble, []string{"Governor"})
		})

		Convey("Then positions and ownership are indexed", func() {
			i, ok := r.Index(model.RoleMayor, "Y")
			So(ok, ShouldBeTrue)
			So(i, ShouldEqual, 1)
			role, ok := r.RoleOf("X")
			So(ok, ShouldBeTrue)
			So(role, ShouldEqual, model.RoleMayor)
		})
	})

	Convey("Given an empty roster document", t, func() {
		var r model.Roster
		So(json.Unmarshal([]byte(`{}`), &r), ShouldBeNil)
		So(r.IsEmpty(), ShouldBeTrue)
	})

	Convey("Given the default roster", t, func() {
		r := model.DefaultRoster()
		So(r.IsEmpty(), ShouldBeFalse)
		So(len(r.Candidates(model.RoleCouncilor)), ShouldEqual, 17)
		So(r.Candidates(model.RoleMayor)[0], ShouldEqual, "AGDA, DAYAN (PFP)")
	})
}
