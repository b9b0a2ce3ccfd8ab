// Command approver is an operator console for the procurement API. It lists
// documents of one kind with the actions the signed-in user may take, applies
// an action to one or more documents, and can follow live changes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"procurement/internal/client"
	"procurement/internal/config"
	"procurement/internal/executor"
	"procurement/internal/logger"
	"procurement/internal/resilient"
	"procurement/internal/session"
	"procurement/internal/workflow"
)

type options struct {
	kind        string
	status      string
	query       string
	limit       int
	action      string
	ids         string
	reason      string
	payload     string
	yes         bool
	concurrency int
	watch       bool
}

func main() {
	var o options
	flag.StringVar(&o.kind, "kind", "purchase-orders", "document kind or resource, e.g. expenses")
	flag.StringVar(&o.status, "status", "", "only list documents in this status")
	flag.StringVar(&o.query, "q", "", "search number, title or party")
	flag.IntVar(&o.limit, "limit", 50, "documents to load")
	flag.StringVar(&o.action, "action", "", "action to apply, e.g. approve, reject, submit_for_approval")
	flag.StringVar(&o.ids, "id", "", "comma separated document ids for -action")
	flag.StringVar(&o.reason, "reason", "", "comment sent with approve or reject")
	flag.StringVar(&o.payload, "payload", "", "JSON file with the new content for -action edit")
	flag.BoolVar(&o.yes, "yes", false, "confirm destructive actions without prompting")
	flag.IntVar(&o.concurrency, "concurrency", 4, "parallel calls when -id names several documents")
	flag.BoolVar(&o.watch, "watch", false, "keep running and print live changes")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	kind, err := workflow.ParseKind(o.kind)
	if err != nil {
		return err
	}
	catalog, ok := workflow.MustDefaultRegistry().Catalog(kind)
	if !ok {
		return fmt.Errorf("no catalog for %s", kind)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.NewStore()
	sess.OnClear(func() {
		fmt.Fprintln(os.Stderr, "session ended, sign in again")
		stop()
	})
	api := client.New(cfg.APIBaseURL, sess, client.WithTimeout(cfg.APITimeout), client.WithLogger(log))

	if err := signIn(ctx, api, sess, cfg); err != nil {
		return err
	}

	caller := resilient.NewCaller(sess, resilient.NewLogNotifier(log), resilient.NewDedupCache(),
		resilient.WithConfig(resilient.Config{MaxRetries: cfg.RetryMax, BaseDelay: cfg.RetryBaseDelay}),
		resilient.WithLogger(log))
	exec := executor.New(catalog, api.Documents(kind), caller, sess, log)

	if err := exec.Load(ctx, workflow.ListFilter{
		Status: workflow.Status(o.status),
		Query:  o.query,
		Limit:  o.limit,
	}); err != nil {
		return err
	}

	if o.action != "" {
		if err := apply(ctx, exec, o); err != nil {
			return err
		}
	}

	printRows(exec.Rows(ctx))

	if !o.watch {
		return nil
	}
	fmt.Println("watching for changes, ctrl-c to stop")
	return api.Subscribe(ctx, func(ev workflow.Event) {
		if !exec.ApplyEvent(ev) {
			return
		}
		d := catalog.DisplayFor(ev.Entity.Status)
		fmt.Printf("%s  %-24s  %s\n", ev.Type, ev.Entity.Number, d.Label)
	})
}

func signIn(ctx context.Context, api *client.Client, sess *session.Store, cfg *config.Config) error {
	email, password := cfg.APIEmail, cfg.APIPassword
	var err error
	if email == "" {
		if email, err = promptRequired("Email", false); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = promptRequired("Password", true); err != nil {
			return err
		}
	}

	token, err := api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	sess.SetToken(token)

	me, err := api.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	sess.SetPermissions(me.Permissions)
	fmt.Printf("signed in as %s (%s)\n", me.Username, me.Role)
	return nil
}

func apply(ctx context.Context, exec *executor.Executor, o options) error {
	kind, err := workflow.ParseActionKind(o.action)
	if err != nil {
		return err
	}
	ids := splitIDs(o.ids)
	if len(ids) == 0 {
		return errors.New("-action needs -id")
	}

	if kind == workflow.ActionEdit && o.payload != "" {
		return saveEdit(ctx, exec, ids, o.payload)
	}

	var opts []executor.ApplyOption
	reason := o.reason
	if reason == "" && kind == workflow.ActionReject && !o.yes {
		if reason, err = promptOptional("Reason for rejecting"); err != nil {
			return err
		}
	}
	if reason != "" {
		opts = append(opts, executor.WithReason(reason))
	}

	confirm, err := needsConfirmation(ctx, exec, ids, kind)
	if err != nil {
		return err
	}
	if confirm {
		if !o.yes {
			ok, err := promptConfirm(fmt.Sprintf("%s %d document(s)", kind, len(ids)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("cancelled")
				return nil
			}
		}
		opts = append(opts, executor.WithConfirmation())
	}

	if len(ids) == 1 {
		res, err := exec.ApplyAction(ctx, ids[0], kind, opts...)
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	}

	for _, id := range ids {
		if !exec.Store().Select(id) {
			return fmt.Errorf("%w: %s", executor.ErrNotLoaded, id)
		}
	}
	failed := 0
	for _, out := range exec.ApplySelected(ctx, kind, o.concurrency, opts...) {
		if out.Err != nil {
			failed++
			fmt.Printf("%s: %v\n", out.ID, out.Err)
			continue
		}
		printResult(out.Result)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(ids))
	}
	return nil
}

// needsConfirmation reports whether kind is a confirm-first action on any of ids.
func needsConfirmation(ctx context.Context, exec *executor.Executor, ids []string, kind workflow.ActionKind) (bool, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, row := range exec.Rows(ctx) {
		if !want[row.Entity.ID] {
			continue
		}
		for _, a := range row.Actions {
			if a.Kind == kind && a.RequiresConfirmation {
				return true, nil
			}
		}
	}
	return false, nil
}

func saveEdit(ctx context.Context, exec *executor.Executor, ids []string, path string) error {
	if len(ids) != 1 {
		return errors.New("-payload edits one document at a time")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%s is not valid JSON", path)
	}

	res, err := exec.SaveEdit(ctx, ids[0], json.RawMessage(raw))
	if err != nil {
		return err
	}
	fmt.Printf("%s saved, amount %s %s\n", res.Entity.Number, res.Entity.Amount.StringFixed(2), res.Entity.Currency)
	return nil
}

func printResult(res executor.Result) {
	e := res.Entity
	switch res.Intent {
	case executor.IntentRemoved:
		fmt.Printf("%s deleted\n", e.Number)
	case executor.IntentUpdated:
		fmt.Printf("%s is now %s\n", e.Number, e.Status)
	case executor.IntentOpenDetails, executor.IntentOpenEditor:
		fmt.Printf("%s  %s\n  party: %s\n  amount: %s %s\n  status: %s\n  last modified: %s\n",
			e.Number, e.Title, e.PartyName, e.Amount.StringFixed(2), e.Currency, e.Status, e.LastModified.Format("2006-01-02 15:04"))
	}
}

func printRows(rows []executor.Row) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tSTATUS\tAMOUNT\tTITLE\tACTIONS")
	for _, r := range rows {
		actions := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			actions = append(actions, a.Kind.String())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			r.Entity.ID, r.Entity.Number, r.Display.Label,
			r.Entity.Amount.StringFixed(2), r.Entity.Currency,
			r.Entity.Title, strings.Join(actions, ", "))
	}
	_ = w.Flush()
	if len(rows) == 0 {
		fmt.Println("no documents")
	}
}

func splitIDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
