// Package pipeline turns a single post-receive event into zero or
// more executed jobs: workspace lifecycle, definition parsing,
// reference matching, synchronous/detached dispatch, and notification
// fan-out.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/minicd/minicd/internal/definition"
	"github.com/minicd/minicd/internal/gitdriver"
	"github.com/minicd/minicd/internal/mailer"
	"github.com/minicd/minicd/internal/runner"
	"github.com/minicd/minicd/internal/secrets"
	"github.com/minicd/minicd/internal/webhook"
)

// gitOps is the subset of gitdriver's surface the pipeline depends on,
// seamed out so tests can run without a real git binary or network.
type gitOps interface {
	Clone(remote, dir string) error
	Checkout(dir, ref string) error
	ResolveRefName(dir, ref string) (string, error)
}

type realGit struct{}

func (realGit) Clone(remote, dir string) error                 { return gitdriver.Clone(remote, dir) }
func (realGit) Checkout(dir, ref string) error                 { return gitdriver.Checkout(dir, ref) }
func (realGit) ResolveRefName(dir, ref string) (string, error) { return gitdriver.ResolveRefName(dir, ref) }

// Pipeline wires together the immutable, shared-by-reference
// collaborators needed to run jobs for one project.
type Pipeline struct {
	Secrets *secrets.Store
	Mailer  *mailer.Mailer
	Webhook *webhook.Notifier
	Log     *logrus.Entry

	git gitOps
}

// New builds a Pipeline over the real git binary.
func New(store *secrets.Store, m *mailer.Mailer, wh *webhook.Notifier, log *logrus.Entry) *Pipeline {
	return &Pipeline{Secrets: store, Mailer: m, Webhook: wh, Log: log, git: realGit{}}
}

// Run is the pipeline's only public entry point: clone/checkout the
// notified revision, parse its manifest, and dispatch every matching
// job. It returns once every job with await:true has finished;
// detached jobs continue running after Run returns.
func (p *Pipeline) Run(ctx context.Context, remote, commit, refName string) error {
	ref, err := definition.ParseRef(refName)
	if err != nil {
		return fmt.Errorf("parsing ref name %q: %w", refName, err)
	}

	ws, err := newWorkspace()
	if err != nil {
		return err
	}
	defer ws.Release()

	if err := p.git.Clone(remote, ws.Dir()); err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	if err := p.git.Checkout(ws.Dir(), commit); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	manifestPath := filepath.Join(ws.Dir(), ".minicd")
	data, err := os.ReadFile(manifestPath) //nolint:gosec // G304: path is our own workspace
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no definition file")
		}
		return fmt.Errorf("reading manifest: %w", err)
	}
	def, err := definition.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}

	resolvedCommit := commit
	if name, err := p.git.ResolveRefName(ws.Dir(), commit); err == nil {
		resolvedCommit = name
	}

	rc := &runContext{
		pipeline:       p,
		workspace:      ws,
		def:            def,
		ref:            ref,
		resolvedCommit: resolvedCommit,
	}

	for _, jobID := range def.JobOrder {
		job, ok := def.Jobs[jobID]
		if !ok {
			continue
		}
		if job.On != nil && !job.On.Matches(ref) {
			p.logf(logrus.DebugLevel, jobID, "skipping job: reference does not match filter")
			continue
		}

		if job.Await {
			rc.runJob(ctx, jobID, job)
			continue
		}

		ws.Retain()
		go func(jobID string, job definition.Job) {
			defer ws.Release()
			rc.runJob(context.Background(), jobID, job)
		}(jobID, job)
	}

	return nil
}

func (p *Pipeline) logf(level logrus.Level, jobID, msg string) {
	if p.Log == nil {
		return
	}
	p.Log.WithField("job", jobID).Log(level, msg)
}

// runContext carries the state shared by every job execution within a
// single Run invocation.
type runContext struct {
	pipeline       *Pipeline
	workspace      *workspace
	def            *definition.Definition
	ref            definition.Reference
	resolvedCommit string
}

// runJob implements the run_job algorithm from start notification
// through script execution to success/failure notification. It never
// returns an error: a script failure becomes a Failure notification
// and a notification failure is only logged, per the pipeline's error
// propagation policy.
func (rc *runContext) runJob(ctx context.Context, jobID string, job definition.Job) {
	p := rc.pipeline

	rc.notify(ctx, jobID, job, definition.EventStart, "", "")

	env := os.Environ()
	for k, v := range secrets.ToEnv(p.Secrets.Flatten()) {
		env = append(env, k+"="+v)
	}

	result, err := runner.Run(ctx, job.Shell, job.Run, rc.workspace.Dir(), env)
	if err != nil {
		rc.notify(ctx, jobID, job, definition.EventFailure, "", err.Error())
		return
	}
	if result.ExitCode == 0 {
		rc.notify(ctx, jobID, job, definition.EventSuccess, result.Stdout, "")
		return
	}
	rc.notify(ctx, jobID, job, definition.EventFailure, "", result.Stderr)
}

// notify fires every notify entry matching state, in declaration
// order, against every one of its targets, in declaration order. A
// delivery failure on one target is logged and does not stop the
// remaining targets or notify entries from being attempted.
func (rc *runContext) notify(ctx context.Context, jobID string, job definition.Job, state definition.Event, stdout, errMsg string) {
	p := rc.pipeline
	subject, body := rc.renderOutcome(jobID, state, stdout, errMsg)

	for _, n := range definition.GetNotify(job, state) {
		for _, target := range n.To {
			if err := rc.deliver(ctx, target, subject, body); err != nil {
				p.logf(logrus.WarnLevel, jobID, fmt.Sprintf("notification delivery failed: %v", err))
			}
		}
	}
}

func (rc *runContext) deliver(ctx context.Context, target definition.Target, subject, body string) error {
	p := rc.pipeline
	switch target.Type {
	case "email":
		if p.Mailer == nil {
			return fmt.Errorf("email notification requested but mailer is not configured")
		}
		return p.Mailer.Send(target.Address, subject, body)
	case "webhook":
		if p.Webhook == nil {
			return fmt.Errorf("webhook notifier not configured")
		}
		return p.Webhook.Send(ctx, p.Secrets, target.URL, target.Method, target.Headers)
	default:
		return fmt.Errorf("unknown notify target type %q", target.Type)
	}
}

func (rc *runContext) renderOutcome(jobID string, state definition.Event, stdout, errMsg string) (subject, body string) {
	name := rc.def.Name
	refText := rc.ref.Display()

	switch state {
	case definition.EventStart:
		return fmt.Sprintf("Job started: %s/%s", name, jobID),
			fmt.Sprintf("Job %q of project %q started on %s at %s.", jobID, name, refText, rc.resolvedCommit)
	case definition.EventSuccess:
		return fmt.Sprintf("Job succeeded: %s/%s", name, jobID),
			fmt.Sprintf("Job %q of project %q succeeded on %s at %s.\n\n%s", jobID, name, refText, rc.resolvedCommit, stdout)
	default:
		return fmt.Sprintf("Job failed: %s/%s", name, jobID),
			fmt.Sprintf("Job %q of project %q failed on %s at %s.\n\n%s", jobID, name, refText, rc.resolvedCommit, errMsg)
	}
}
