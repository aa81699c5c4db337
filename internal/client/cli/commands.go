package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bily-amin/habitica/internal/rpc"
	"github.com/bily-amin/habitica/internal/server/auth"
	"github.com/shopspring/decimal"
)

var errUsage = errors.New("invalid arguments")

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse parses args and checks the number of positional arguments.
func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != positional {
		return nil, errUsage
	}
	return fs.Args(), nil
}

// parseTask reads "type:text" into a task spec.
func parseTask(s string) (rpc.TaskSpec, error) {
	typ, text, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(text) == "" {
		return rpc.TaskSpec{}, fmt.Errorf("task %q must look like type:text", s)
	}
	return rpc.TaskSpec{Type: strings.TrimSpace(typ), Text: strings.TrimSpace(text)}, nil
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	var req rpc.CreateChallengeRequest
	var prize string
	fs.StringVar(&req.GroupID, "group", "", "group id")
	fs.StringVar(&req.Name, "name", "", "challenge name")
	fs.StringVar(&req.ShortName, "short", "", "short name (3+ characters)")
	fs.StringVar(&req.Summary, "summary", "", "summary")
	fs.StringVar(&req.Description, "description", "", "description")
	fs.StringVar(&prize, "prize", "0", "prize in gems")
	fs.BoolVar(&req.Official, "official", false, "mark as official (admins only)")
	fs.Func("task", "template task as type:text (repeatable)", func(s string) error {
		t, err := parseTask(s)
		if err != nil {
			return err
		}
		req.Tasks = append(req.Tasks, t)
		return nil
	})
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	p, err := decimal.NewFromString(prize)
	if err != nil {
		return fmt.Errorf("%w: prize %q is not a number", errUsage, prize)
	}
	req.Prize = p

	if req.Name == "" {
		if req.Name, err = GetSimpleText(a.reader, "Challenge name", a.out); err != nil {
			return err
		}
	}

	c, err := a.api.CreateChallenge(ctx, req)
	if err != nil {
		return err
	}
	printChallenge(a.out, c)
	return nil
}

func (a *App) get(ctx context.Context, args []string) error {
	pos, err := parse(newFlagSet("get"), args, 1)
	if err != nil {
		return err
	}
	c, err := a.api.GetChallenge(ctx, pos[0])
	if err != nil {
		return err
	}
	printChallenge(a.out, c)
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	page := fs.Int("page", 0, "page number")
	group := fs.String("group", "", "list the challenges of this group instead")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	var (
		list []rpc.Challenge
		err  error
	)
	if *group != "" {
		list, err = a.api.ListGroupChallenges(ctx, *group)
	} else {
		list, err = a.api.ListUserChallenges(ctx, *page)
	}
	if err != nil {
		return err
	}
	printChallengeList(a.out, list)
	return nil
}

func (a *App) update(ctx context.Context, args []string) error {
	fs := newFlagSet("update")
	name := fs.String("name", "", "new name")
	short := fs.String("short", "", "new short name")
	summary := fs.String("summary", "", "new summary")
	description := fs.String("description", "", "new description")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	req := rpc.UpdateChallengeRequest{ChallengeID: pos[0]}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			req.Name = name
		case "short":
			req.ShortName = short
		case "summary":
			req.Summary = summary
		case "description":
			req.Description = description
		}
	})

	c, err := a.api.UpdateChallenge(ctx, req)
	if err != nil {
		return err
	}
	printChallenge(a.out, c)
	return nil
}

func (a *App) addTask(ctx context.Context, args []string) error {
	fs := newFlagSet("task")
	var spec rpc.TaskSpec
	fs.StringVar(&spec.Type, "type", "todo", "task type")
	fs.StringVar(&spec.Text, "text", "", "task text")
	fs.StringVar(&spec.Notes, "notes", "", "task notes")
	fs.Float64Var(&spec.Value, "value", 0, "task value")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	t, err := a.api.AddChallengeTask(ctx, pos[0], spec)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s task %s to challenge %s\n", t.Type, t.ID, t.ChallengeID)
	return nil
}

func (a *App) join(ctx context.Context, args []string) error {
	pos, err := parse(newFlagSet("join"), args, 1)
	if err != nil {
		return err
	}
	c, err := a.api.JoinChallenge(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Joined %q (%d members)\n", c.Name, c.MemberCount)
	return nil
}

func (a *App) leave(ctx context.Context, args []string) error {
	fs := newFlagSet("leave")
	keep := fs.String("keep", "keep-all", "what happens to your task copies: keep-all or remove-all")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	c, err := a.api.LeaveChallenge(ctx, pos[0], *keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Left %q (%d members)\n", c.Name, c.MemberCount)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	pos, err := parse(newFlagSet("delete"), args, 1)
	if err != nil {
		return err
	}
	if err := a.api.DeleteChallenge(ctx, pos[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Challenge %s deleted\n", pos[0])
	return nil
}

func (a *App) winner(ctx context.Context, args []string) error {
	pos, err := parse(newFlagSet("winner"), args, 2)
	if err != nil {
		return err
	}
	if err := a.api.SelectChallengeWinner(ctx, pos[0], pos[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Challenge %s closed, winner %s\n", pos[0], pos[1])
	return nil
}

func (a *App) export(ctx context.Context, args []string) error {
	pos, err := parse(newFlagSet("export"), args, 1)
	if err != nil {
		return err
	}
	url, err := a.api.ExportChallengeMembers(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, url)
	return nil
}

// token signs a development access token with the shared secret.
func (a *App) token(_ context.Context, args []string) error {
	fs := newFlagSet("token")
	ttl := fs.Duration("ttl", time.Hour, "token validity")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	tok, err := auth.GenerateToken(pos[0], []byte(a.config.SecretKey), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok)
	return nil
}

func printChallenge(w io.Writer, c *rpc.Challenge) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", c.ID)
	fmt.Fprintf(tw, "Name:\t%s (%s)\n", c.Name, c.ShortName)
	if c.Summary != "" {
		fmt.Fprintf(tw, "Summary:\t%s\n", c.Summary)
	}
	fmt.Fprintf(tw, "Group:\t%s\n", c.GroupID)
	fmt.Fprintf(tw, "Leader:\t%s\n", c.LeaderID)
	fmt.Fprintf(tw, "Prize:\t%s\n", c.Prize.String())
	fmt.Fprintf(tw, "Members:\t%d\n", c.MemberCount)
	if c.Official {
		fmt.Fprintf(tw, "Official:\tyes\n")
	}
	o := c.TasksOrder
	fmt.Fprintf(tw, "Tasks:\t%d habits, %d dailies, %d todos, %d rewards\n",
		len(o.Habits), len(o.Dailys), len(o.Todos), len(o.Rewards))
	_ = tw.Flush()
}

func printChallengeList(w io.Writer, list []rpc.Challenge) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No challenges")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRIZE\tMEMBERS")
	for _, c := range list {
		name := c.Name
		if c.Official {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, name, c.Prize.String(), c.MemberCount)
	}
	_ = tw.Flush()
}
