package fleetmonitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	intmetrics "github.com/koptimizer/rigwatch/internal/metrics"
	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/advisor"
	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/cost"
	"github.com/koptimizer/rigwatch/pkg/fleet"
	"github.com/koptimizer/rigwatch/pkg/minerlog"
)

// RunCycle performs one poll cycle and publishes its report. Per-instance
// failures become issues on the report. Only an inventory failure or an
// invalid configuration fails the cycle, and then the previous report stays
// published.
func (c *Controller) RunCycle(ctx context.Context) (*state.Report, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	start := c.now()
	cycleID := uuid.NewString()
	logger := logr.FromContextOrDiscard(ctx).WithName(c.Name()).WithValues("cycleID", cycleID)
	ctx = logr.NewContext(ctx, logger)
	logger.V(1).Info("Starting poll cycle")

	sortOpts, err := c.config.SortOptions()
	if err != nil {
		intmetrics.RecordCycleError()
		return nil, err
	}

	instances, err := c.provider.ListInstances(ctx)
	if err != nil {
		intmetrics.RecordCycleError()
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	logger.Info("Listed inventory", "instances", len(instances))

	var issues []fleet.Issue
	for _, inst := range instances {
		for _, err := range inst.MissingFieldErrors() {
			logger.Info("Inventory record incomplete", "instance", inst.ID, "error", err.Error())
			issues = append(issues, fleet.NewIssue(inst.ID, fleet.IssueMissingField, err))
		}
	}

	rows, collectIssues := c.collect(ctx, instances)
	issues = append(issues, collectIssues...)

	sorted, summary, err := fleet.Aggregate(rows, sortOpts)
	if err != nil {
		intmetrics.RecordCycleError()
		return nil, err
	}
	outliers, err := fleet.DetectOutliers(rows, c.config.Outliers.Threshold)
	if err != nil {
		intmetrics.RecordCycleError()
		return nil, err
	}

	r := &state.Report{
		CycleID:        cycleID,
		Timestamp:      start,
		Rows:           sorted,
		Sort:           sortOpts,
		Summary:        summary,
		Outliers:       outliers,
		InventorySpend: fleet.InventorySpend(cloudprovider.Descriptors(instances)),
	}

	if c.config.Balance.Enabled {
		if issue := c.project(ctx, r); issue != nil {
			issues = append(issues, *issue)
		}
	}
	r.Issues = issues

	if c.advisor.Enabled() {
		advice, err := c.advisor.Advise(ctx, advisor.Request{
			Summary:  summary,
			Classes:  outliers.Classes,
			Outliers: outliers.Flagged,
			Rows:     sorted,
		})
		if err != nil {
			logger.Error(err, "Advisor unavailable")
		}
		r.Advice = advice
	}

	duration := c.now().Sub(start)
	r.Duration = duration.Round(time.Millisecond).String()

	c.state.Publish(r)
	intmetrics.RecordReport(r, duration)
	intmetrics.RecordBreakers(c.state.Breaker)
	if c.sink != nil {
		if err := c.sink.Write(ctx, r); err != nil {
			logger.Error(err, "Writing report failed")
		}
	}

	logger.Info("Poll cycle complete",
		"rows", len(r.Rows),
		"issues", len(r.Issues),
		"flagged", len(r.Outliers.Flagged),
		"duration", r.Duration,
	)
	return r, nil
}

// collect fetches, parses and derives every instance concurrently. Rows and
// issues come back in inventory order.
func (c *Controller) collect(ctx context.Context, instances []*cloudprovider.Instance) ([]fleet.InstanceMetrics, []fleet.Issue) {
	type result struct {
		row   *fleet.InstanceMetrics
		issue *fleet.Issue
	}
	results := make([]result, len(instances))

	if b := c.state.Breaker; b != nil {
		ids := make([]string, len(instances))
		for i, inst := range instances {
			ids[i] = inst.ID
		}
		b.Retain(ids)
	}

	limit := c.config.Fetch.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, inst := range instances {
		g.Go(func() error {
			row, issue := c.collectOne(gctx, inst)
			results[i] = result{row: row, issue: issue}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	var rows []fleet.InstanceMetrics
	var issues []fleet.Issue
	for _, res := range results {
		if res.row != nil {
			rows = append(rows, *res.row)
		}
		if res.issue != nil {
			issues = append(issues, *res.issue)
		}
	}
	return rows, issues
}

func (c *Controller) collectOne(ctx context.Context, inst *cloudprovider.Instance) (*fleet.InstanceMetrics, *fleet.Issue) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("instance", inst.ID)
	breaker := c.state.Breaker

	if breaker != nil && breaker.IsTripped(inst.ID) {
		logger.V(1).Info("Circuit breaker open, skipping log fetch")
		issue := fleet.Issue{InstanceID: inst.ID, Kind: fleet.IssueBreakerOpen, Detail: breaker.Status(inst.ID)}
		return nil, &issue
	}

	fetchCtx := ctx
	if timeout := c.config.Fetch.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.V(1).Info("Fetching log line")
	start := c.now()
	line, err := c.fetcher.FetchLastLine(fetchCtx, inst)
	intmetrics.ObserveFetch(c.now().Sub(start), err)
	if err != nil {
		if breaker != nil {
			breaker.RecordFailure(inst.ID)
		}
		var fe *fleet.FetchError
		if !errors.As(err, &fe) {
			err = &fleet.FetchError{InstanceID: inst.ID, Err: err}
		}
		logger.Error(err, "Failed to fetch log line")
		issue := fleet.NewIssue(inst.ID, fleet.IssueFetch, err)
		return nil, &issue
	}
	if breaker != nil {
		breaker.RecordSuccess(inst.ID)
	}

	sample, err := minerlog.Parse(line)
	if err != nil {
		logger.Error(err, "Failed to parse the log line", "line", line)
		issue := fleet.NewIssue(inst.ID, fleet.IssueParse, err)
		return nil, &issue
	}

	row := fleet.Derive(inst.InstanceDescriptor, sample)
	logger.V(1).Info("Derived metrics",
		"hashRate", sample.HashRate,
		"normalBlocks", sample.NormalBlocks,
		"runtimeHours", row.RuntimeHours,
	)
	return &row, nil
}

// project fetches the balance and projects the runway against the running
// spend of the whole inventory. A failed balance fetch is an issue, not a
// cycle failure.
func (c *Controller) project(ctx context.Context, r *state.Report) *fleet.Issue {
	logger := logr.FromContextOrDiscard(ctx)

	balance, err := c.provider.GetBalance(ctx)
	if err != nil {
		logger.Error(err, "Failed to fetch account balance")
		issue := fleet.NewIssue("", fleet.IssueBalance, err)
		return &issue
	}
	r.Balance = fleet.Some(balance)

	spend := r.InventorySpend.OrElse(0)
	p := cost.Project(balance, spend, c.config.Balance.FeeMultiplier)
	r.Projection = &p
	if p.LastsIndefinitely {
		logger.Info("No running spend, balance will last indefinitely", "balanceUSD", balance)
	} else {
		logger.V(1).Info("Projected runway", "balanceUSD", balance, "hourlySpendUSD", spend, "runway", p.Runway.String())
	}
	return nil
}
