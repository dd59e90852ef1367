package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/okian/tally/internal/adapters/rosterfile"
	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/grouping"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/export"
)

func runShow(ctx context.Context, e *env, args []string) error {
	var precinct string
	fs := newFlagSet(e, "show")
	fs.StringVarP(&precinct, "barangay", "b", "", "show one precinct's votes and leaderboard")
	if err := parse(fs, args); err != nil {
		return err
	}

	svc, v, err := loadView(ctx, e)
	if err != nil {
		return err
	}
	if precinct == "" {
		return e.render.Summaries(e.out, v.Summaries, v.FetchedAt)
	}
	g, lb, err := svc.PrecinctBoard(precinct)
	if err != nil {
		return err
	}
	return e.render.Precinct(e.out, g, lb)
}

func runResults(ctx context.Context, e *env, args []string) error {
	var server, verify bool
	fs := newFlagSet(e, "results")
	fs.BoolVar(&server, "server", false, "show the service's own tally, pending votes included")
	fs.BoolVar(&verify, "verify", false, "compare the local recount with the service's tally")
	if err := parse(fs, args); err != nil {
		return err
	}

	switch {
	case verify:
		svc, err := newService(ctx, e)
		if err != nil {
			return err
		}
		ver, err := svc.Verify(ctx)
		if err != nil {
			return err
		}
		if ver.Consistent {
			return e.render.Notice(e.out, "local recount matches the service", nil)
		}
		for _, d := range ver.Discrepancies {
			fmt.Fprintf(e.out, "%-32s local %6s  server %6s\n", d.Candidate,
				humanize.Comma(int64(d.Local)), humanize.Comma(int64(d.Server)))
		}
		return fmt.Errorf("%d candidates differ", len(ver.Discrepancies))
	case server:
		svc, err := newService(ctx, e)
		if err != nil {
			return err
		}
		lb, err := svc.ServerResults(ctx)
		if err != nil {
			return err
		}
		return e.render.Leaderboard(e.out, lb)
	default:
		_, v, err := loadView(ctx, e)
		if err != nil {
			return err
		}
		return e.render.Leaderboard(e.out, v.Leaderboard)
	}
}

func runVote(ctx context.Context, e *env, args []string) error {
	var (
		voterID, precinct, mayor, viceMayor string
		councilors                          []string
	)
	fs := newFlagSet(e, "vote")
	fs.StringVar(&voterID, "voter", "", "voter id")
	fs.StringVarP(&precinct, "barangay", "b", "", "precinct")
	fs.StringVar(&mayor, "mayor", "", "Mayor candidate")
	fs.StringVar(&viceMayor, "vice-mayor", "", "Vice Mayor candidate")
	fs.StringArrayVar(&councilors, "councilor", nil, "Councilor candidate; repeat for several")
	if err := parse(fs, args); err != nil {
		return err
	}

	v := ballot.Build(voterID, precinct,
		map[model.Role]string{model.RoleMayor: mayor, model.RoleViceMayor: viceMayor},
		map[model.Role][]string{model.RoleCouncilor: councilors},
	)
	svc, err := newService(ctx, e)
	if err != nil {
		return err
	}
	msg, err := svc.SubmitVote(ctx, v)
	if err != nil {
		return err
	}
	return e.render.Notice(e.out, msg, nil)
}

func runMine(ctx context.Context, e *env, args []string) error {
	var precinct string
	fs := newFlagSet(e, "mine")
	fs.StringVarP(&precinct, "barangay", "b", "", "mine one precinct; all when empty")
	if err := parse(fs, args); err != nil {
		return err
	}

	svc, err := newService(ctx, e)
	if err != nil {
		return err
	}
	msg, err := svc.Mine(ctx, precinct)
	if err != nil {
		return err
	}
	return e.render.Notice(e.out, msg, nil)
}

func runExport(ctx context.Context, e *env, args []string) error {
	var precinct, format, out string
	fs := newFlagSet(e, "export")
	fs.StringVarP(&precinct, "barangay", "b", "", "export one precinct")
	fs.StringVarP(&format, "format", "f", "text", "text or json")
	fs.StringVarP(&out, "out", "o", "", "output file; stdout when empty")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := oneOf(format, "text", "json"); err != nil {
		return err
	}

	svc, _, err := loadView(ctx, e)
	if err != nil {
		return err
	}
	pages, err := svc.Pages(precinct)
	if err != nil {
		return err
	}
	return output(e, out, func(w io.Writer) error {
		if format == "json" {
			return writeJSON(w, pages)
		}
		return export.WriteText(w, pages)
	})
}

func runPrint(ctx context.Context, e *env, args []string) error {
	var format, out string
	fs := newFlagSet(e, "print")
	fs.StringVarP(&format, "format", "f", "table", "table, html or json")
	fs.StringVarP(&out, "out", "o", "", "output file; stdout when empty")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := oneOf(format, "table", "html", "json"); err != nil {
		return err
	}

	svc, _, err := loadView(ctx, e)
	if err != nil {
		return err
	}
	doc, err := svc.PrintDocument()
	if err != nil {
		return err
	}
	return output(e, out, func(w io.Writer) error {
		switch format {
		case "html":
			return doc.WriteHTML(w)
		case "json":
			return writeJSON(w, doc)
		default:
			return doc.WriteTable(w)
		}
	})
}

func runArchive(ctx context.Context, e *env, args []string) error {
	var out, read, digest string
	fs := newFlagSet(e, "archive")
	fs.StringVarP(&out, "out", "o", "tally.json.zst", "archive to write")
	fs.StringVar(&read, "read", "", "read an archive instead of writing one")
	fs.StringVar(&digest, "digest", "", "expected digest of the archive being read")
	if err := parse(fs, args); err != nil {
		return err
	}
	if read != "" {
		return readArchive(e, read, digest)
	}

	svc, _, err := loadView(ctx, e)
	if err != nil {
		return err
	}
	var (
		d export.Digest
		n int
	)
	err = output(e, out, func(w io.Writer) error {
		var werr error
		d, n, werr = svc.Archive(w, e.cfg.ServerURL)
		return werr
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.errOut, "wrote %s (%s) blake3:%s\n", out, humanize.Bytes(uint64(n)), d) //nolint:gosec // n is a byte count
	return nil
}

func readArchive(e *env, path, digest string) error {
	var want export.Digest
	if digest != "" {
		d, err := export.ParseDigest(digest)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		want = d
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	a, err := export.ReadArchive(f, want)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "archive v%d from %s, generated %s\n", a.Version, a.Source, humanize.Time(a.GeneratedAt))
	if err := e.render.Summaries(e.out, grouping.Summarize(a.Groups), time.Time{}); err != nil {
		return err
	}
	return e.render.Leaderboard(e.out, a.Leaderboard)
}

func runRoster(ctx context.Context, e *env, args []string) error {
	var save string
	fs := newFlagSet(e, "roster")
	fs.StringVar(&save, "save", "", "write the roster to this file (.yaml, .yml, .json or .jsonc)")
	if err := parse(fs, args); err != nil {
		return err
	}

	svc, err := newService(ctx, e)
	if err != nil {
		return err
	}
	roster, err := svc.Roster()
	if err != nil {
		return err
	}
	if save != "" {
		if err := rosterfile.Save(save, roster); err != nil {
			return err
		}
		return e.render.Notice(e.out, "roster ("+svc.RosterSource()+") saved to "+save, nil)
	}
	data, err := rosterfile.Marshal(roster)
	if err != nil {
		return err
	}
	_, err = e.out.Write(data)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
