// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-skills/bundle"
	"github.com/stacklok/toolhive-skills/lockfile"
	"github.com/stacklok/toolhive-skills/logging"
	"github.com/stacklok/toolhive-skills/metadata"
	"github.com/stacklok/toolhive-skills/policy"
	"github.com/stacklok/toolhive-skills/recovery"
	"github.com/stacklok/toolhive-skills/resolve"
)

// DefaultConcurrency bounds the number of bundles fetched and extracted at once.
const DefaultConcurrency = 4

// Fetcher downloads a verified bundle. *bundle.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, bundleID string) ([]byte, error)
}

// Installer extracts a bundle into dest. *bundle.Installer implements it.
type Installer interface {
	Install(ctx context.Context, r io.Reader, dest string, overwrite bool) error
}

// Options control a single Install call.
type Options struct {
	// Overwrite replaces skill directories that exist but are not recorded
	// in the lock file. Recorded skills whose version changed are always
	// replaced.
	Overwrite bool
	// MaxDepth bounds the dependency depth; zero selects resolve.DefaultMaxDepth.
	MaxDepth int
	// DestinationRoot overrides the orchestrator's install root.
	DestinationRoot string
}

// Result describes a successful install.
type Result struct {
	// InstalledNames lists every skill of the resolved tree, dependencies first.
	InstalledNames []string
	// DependencyCount is the number of skills in the tree besides the requested one.
	DependencyCount int
	// Fetched lists the skills downloaded and extracted by this call, in plan order.
	Fetched []string
	// VersionChanges lists skills replaced by a different version.
	VersionChanges []resolve.VersionChange
	// LockFilePath is the lock file that was written.
	LockFilePath string
}

// Orchestrator installs skills together with their dependencies.
// It does not guard against concurrent installs into the same root.
type Orchestrator struct {
	builder     *resolve.Builder
	fetcher     Fetcher
	installer   Installer
	policy      *policy.Policy
	installRoot string
	concurrency int
	observer    func(State)
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFetcher replaces the default bundle fetcher.
func WithFetcher(f Fetcher) Option {
	return func(o *Orchestrator) {
		o.fetcher = f
	}
}

// WithInstaller replaces the default bundle installer.
func WithInstaller(i Installer) Option {
	return func(o *Orchestrator) {
		o.installer = i
	}
}

// WithPolicy sets the install policy checked against every resolved skill.
func WithPolicy(p *policy.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithInstallRoot sets the default destination root.
func WithInstallRoot(root string) Option {
	return func(o *Orchestrator) {
		o.installRoot = root
	}
}

// WithConcurrency sets how many bundles are fetched and extracted in parallel.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithStateObserver registers fn to be called on every state transition.
// fn runs synchronously and must not call back into the Orchestrator.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock sets the time source for lock file timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New returns an Orchestrator resolving metadata through client and
// downloading bundles from store.
func New(client metadata.Client, store bundle.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.Component(o.logger, "install")
	o.builder = resolve.NewBuilder(client, resolve.WithLogger(o.logger))
	if o.fetcher == nil {
		o.fetcher = bundle.NewFetcher(store, bundle.WithFetcherLogger(o.logger))
	}
	if o.installer == nil {
		o.installer = bundle.NewInstaller(bundle.WithInstallerLogger(o.logger))
	}
	return o
}

// Install resolves name, installs every skill of its tree that is not
// already recorded at the resolved version, and records the tree in the lock
// file.
//
// Lock file, resolution, policy and planning errors are returned before anything is
// downloaded or written. When a fetch or extraction fails no new downloads
// are started, downloads already running are allowed to finish, skills that
// were installed stay on disk and the lock file is left unchanged. A lock
// file write failure is reported as a *PersistError.
func (o *Orchestrator) Install(ctx context.Context, name string, opts Options) (*Result, error) {
	m := newMachine(o.observer, o.logger.With(logging.Skill(name)))
	res, err := o.install(ctx, m, name, opts)
	if err != nil {
		m.fail()
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) install(ctx context.Context, m *machine, name string, opts Options) (*Result, error) {
	root := opts.DestinationRoot
	if root == "" {
		root = o.installRoot
	}
	if root == "" {
		return nil, ErrNoInstallRoot
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving install root: %w", err)
	}

	lockPath := lockfile.Path(root)
	existing, err := lockfile.Read(lockPath)
	if err != nil {
		return nil, err
	}
	if err := lockfile.CheckWritable(existing, lockPath); err != nil {
		return nil, err
	}

	g, err := o.builder.Build(ctx, name, opts.MaxDepth)
	if err != nil {
		return nil, err
	}
	if err := o.policy.Enforce(ctx, g); err != nil {
		return nil, err
	}
	plan, err := resolve.PlanInstall(g, existing.Installed())
	if err != nil {
		return nil, err
	}
	changes := plan.VersionChanges()
	for _, c := range changes {
		o.logger.Warn("replacing installed skill with a different version",
			logging.Skill(c.Name), slog.String("from", c.From), slog.String("to", c.To))
	}

	if err := m.transition(StateFetching); err != nil {
		return nil, err
	}
	installedAt, err := o.runPlan(ctx, m, g, plan, root, opts.Overwrite)
	if err != nil {
		return nil, err
	}
	// A plan with nothing to fetch never reaches a worker.
	m.advance(StateFetching, StateExtracting)

	if err := m.transition(StatePersisting); err != nil {
		return nil, err
	}
	record := lockfile.FromGraph(g, root, func(skill string) int64 {
		if at, ok := installedAt[skill]; ok {
			return at
		}
		return existing.InstalledAt(skill)
	})
	merged := lockfile.MergeAt(existing, o.now(), record)
	merged.InstallLocation = root
	if err := lockfile.Write(merged, lockPath); err != nil {
		return nil, &PersistError{LockFile: merged, Path: lockPath, Err: err}
	}
	if err := m.transition(StateDone); err != nil {
		return nil, err
	}

	res := &Result{
		InstalledNames:  plan.Names(),
		DependencyCount: g.Len() - 1,
		VersionChanges:  changes,
		LockFilePath:    lockPath,
	}
	for _, step := range plan.Pending() {
		res.Fetched = append(res.Fetched, step.Name)
	}
	o.logger.Info("installed skill", logging.Skill(name),
		slog.Int("dependencies", res.DependencyCount), slog.Int("fetched", len(res.Fetched)))
	return res, nil
}

// runPlan fetches and extracts every pending step on a bounded pool and
// returns the install time of each. A step starts only once all of its
// pending dependencies are installed, so only skills with no edge between
// them run at the same time. After the first failure no further steps are
// started; steps already running complete.
func (o *Orchestrator) runPlan(
	ctx context.Context, m *machine, g *resolve.Graph, plan *resolve.Plan, root string, overwrite bool,
) (map[string]int64, error) {
	pending := plan.Pending()
	index := make(map[string]int, len(pending))
	for i, step := range pending {
		index[step.Name] = i
	}

	// waiting counts the dependencies of each step that are not installed yet.
	// Skipped dependencies are already on disk.
	waiting := make([]int, len(pending))
	dependents := make([][]int, len(pending))
	for i, step := range pending {
		for _, dep := range g.Dependencies(step.Name) {
			if d, ok := index[dep]; ok {
				waiting[i]++
				dependents[d] = append(dependents[d], i)
			}
		}
	}
	var ready []int
	for i := range pending {
		if waiting[i] == 0 {
			ready = append(ready, i)
		}
	}

	type outcome struct {
		idx int
		err error
	}
	var (
		eg          errgroup.Group
		done        = make(chan outcome, len(pending))
		installedAt = make(map[string]int64, len(pending))
		inflight    int
		failed      bool
	)
	eg.SetLimit(o.concurrency)

	for {
		for !failed && len(ready) > 0 && inflight < o.concurrency {
			idx := ready[0]
			ready = ready[1:]
			step := pending[idx]
			inflight++
			eg.Go(func() error {
				err := recovery.Do(func() error {
					return o.installStep(ctx, m, step, root, overwrite || step.PreviousVersion != "")
				})
				if err != nil {
					o.logger.Warn("skill install failed", logging.Skill(step.Name), slog.Any("error", err))
					err = &SkillError{Skill: step.Name, Chain: g.Chain(step.Name), Err: err}
				}
				done <- outcome{idx: idx, err: err}
				return err
			})
		}
		if inflight == 0 {
			break
		}

		out := <-done
		inflight--
		if out.err != nil {
			failed = true
			continue
		}
		installedAt[pending[out.idx].Name] = o.now().Unix()
		for _, d := range dependents[out.idx] {
			waiting[d]--
			if waiting[d] == 0 {
				// Keep plan order among ready steps.
				pos, _ := slices.BinarySearch(ready, d)
				ready = slices.Insert(ready, pos, d)
			}
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return installedAt, nil
}

func (o *Orchestrator) installStep(ctx context.Context, m *machine, step resolve.Step, root string, overwrite bool) error {
	data, err := o.fetcher.Fetch(ctx, step.BundleID)
	if err != nil {
		return err
	}
	m.advance(StateFetching, StateExtracting)

	dest := filepath.Join(root, step.Name)
	if err := o.installer.Install(ctx, bytes.NewReader(data), dest, overwrite); err != nil {
		return err
	}
	o.logger.Info("installed bundle", logging.Skill(step.Name), logging.Version(step.Version), logging.Bundle(step.BundleID))
	return nil
}
