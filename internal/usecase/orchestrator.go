package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

const tracerName = "github.com/trebuchet-org/treb-relay/internal/usecase"

// DeploymentResult is the outcome of one orchestrated run. Record is always
// set, including the partial record of a failed run.
type DeploymentResult struct {
	Record     *models.DeploymentRecord
	ReportPath string
}

// Orchestrator drives deployment records through build, sign and relay.
// Steps of one record run sequentially; independent records may run
// concurrently.
type Orchestrator struct {
	cfg      *config.RuntimeConfig
	loader   ArtifactLoader
	builder  TransactionBuilder
	signer   Signer
	relay    RelayClient
	chain    ChainReader
	tracker  DeploymentTracker
	reports  ReportWriter
	events   EventPublisher
	progress ProgressSink
	log      *slog.Logger
	tracer   trace.Tracer
	nonces   *nonceAllocator
	now      func() time.Time
}

// NewOrchestrator creates the orchestrator. It refuses a configuration where
// the controller and sponsor are the same account, or where the gas price
// is not zero.
func NewOrchestrator(
	cfg *config.RuntimeConfig,
	loader ArtifactLoader,
	builder TransactionBuilder,
	signer Signer,
	relay RelayClient,
	chain ChainReader,
	tracker DeploymentTracker,
	reports ReportWriter,
	events EventPublisher,
	progress ProgressSink,
	log *slog.Logger,
) (*Orchestrator, error) {
	if err := cfg.Identities.Validate(); err != nil {
		return nil, err
	}
	if cfg.Gas.GasPrice != 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrNonZeroGasPrice, cfg.Gas.GasPrice)
	}
	if cfg.Network == nil {
		return nil, fmt.Errorf("no network configured")
	}
	if events == nil {
		events = NopEvents{}
	}
	if progress == nil {
		progress = NopProgress{}
	}
	return &Orchestrator{
		cfg:      cfg,
		loader:   loader,
		builder:  builder,
		signer:   signer,
		relay:    relay,
		chain:    chain,
		tracker:  tracker,
		reports:  reports,
		events:   events,
		progress: progress,
		log:      log.With("component", "orchestrator"),
		tracer:   otel.Tracer(tracerName),
		nonces:   newNonceAllocator(),
		now:      time.Now,
	}, nil
}

// run holds the per-record state of one execution
type run struct {
	rec       *models.DeploymentRecord
	chainID   uint64
	nonce     uint64
	artifacts map[string]*models.ContractArtifact
	total     int
	current   int
}

// Run executes every pending step of rec. The record is persisted after
// each transition, and before any error is returned.
func (o *Orchestrator) Run(ctx context.Context, rec *models.DeploymentRecord) (*DeploymentResult, error) {
	ctx, span := o.tracer.Start(ctx, "deployment", trace.WithAttributes(
		attribute.String("deployment.id", rec.ID),
		attribute.String("deployment.group", rec.Group),
		attribute.String("deployment.network", rec.Network),
	))
	defer span.End()

	rec.Controller = o.cfg.Identities.Controller.String()
	rec.Sponsor = o.cfg.Identities.Sponsor.String()
	if rec.FeeToken == "" {
		rec.FeeToken = o.cfg.FeeToken
	}

	log := o.log.With("deployment", rec.ID)
	if rec.ResumedFrom != "" {
		log = log.With("resumed_from", rec.ResumedFrom)
	}
	log.Info("deployment started", "group", rec.Group, "network", rec.Network, "steps", len(rec.Steps))

	o.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageStarted,
		Total:    len(rec.Steps),
		Message:  fmt.Sprintf("Deploying %s to %s", rec.Group, rec.Network),
		Metadata: rec.Clone(),
	})

	var runErr *domain.DeploymentError
	if err := o.save(ctx, rec, nil); err != nil {
		runErr = &domain.DeploymentError{DeploymentID: rec.ID, Err: err}
	} else {
		runErr = o.execute(ctx, rec, log)
	}

	if runErr != nil {
		o.fail(ctx, rec, runErr, log)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		log.Info("deployment completed", "addresses", rec.Addresses())
	}

	result := &DeploymentResult{Record: rec.Clone()}
	result.ReportPath = o.writeReport(ctx, rec, log)

	o.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageFinished,
		Total:    len(rec.Steps),
		Metadata: result.Record,
	})

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// RunMany runs independent records concurrently and returns their results
// in input order.
func (o *Orchestrator) RunMany(ctx context.Context, recs []*models.DeploymentRecord) ([]*DeploymentResult, error) {
	results := make([]*DeploymentResult, len(recs))
	errs := make([]error, len(recs))

	var wg sync.WaitGroup
	for i, rec := range recs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = o.Run(ctx, rec)
		}()
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

func (o *Orchestrator) execute(ctx context.Context, rec *models.DeploymentRecord, log *slog.Logger) *domain.DeploymentError {
	fail := func(step string, err error) *domain.DeploymentError {
		return &domain.DeploymentError{DeploymentID: rec.ID, Step: step, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail("", cancelled(err))
	}

	r, err := o.prepare(ctx, rec)
	if err != nil {
		return fail("", err)
	}

	if err := rec.Transition(models.StatusInProgress, o.now()); err != nil {
		return fail("", err)
	}
	if err := o.save(ctx, rec, nil); err != nil {
		return fail("", err)
	}

	for _, step := range rec.DeploySteps() {
		if step.Succeeded() {
			log.Debug("reusing result", "step", step.Name, "address", step.Result.ContractAddress)
			continue
		}
		if err := o.runStep(ctx, r, step, log); err != nil {
			return fail(step.Name, err)
		}
		if err := rec.Transition(models.StatusInProgress, o.now()); err != nil {
			return fail(step.Name, err)
		}
		if err := o.save(ctx, rec, step); err != nil {
			return fail(step.Name, err)
		}
	}

	if err := rec.MarkInitialized(o.now()); err != nil {
		return fail("", err)
	}
	if err := o.save(ctx, rec, nil); err != nil {
		return fail("", err)
	}

	for _, step := range rec.InitSteps() {
		if step.Succeeded() {
			continue
		}
		if err := o.runStep(ctx, r, step, log); err != nil {
			return fail(step.Name, err)
		}
		rec.UpdatedAt = o.now()
		if err := o.save(ctx, rec, step); err != nil {
			return fail(step.Name, err)
		}
	}

	if err := rec.Complete(o.now()); err != nil {
		return fail("", err)
	}
	if err := o.save(ctx, rec, nil); err != nil {
		return fail("", err)
	}
	return nil
}

// prepare resolves the chain id and reserves nonces for the pending steps
func (o *Orchestrator) prepare(ctx context.Context, rec *models.DeploymentRecord) (*run, error) {
	pending := 0
	for _, s := range rec.Steps {
		if !s.Succeeded() {
			pending++
		}
	}

	chainID, err := retry(ctx, o, "chain id", func() (uint64, error) {
		return o.chain.ChainID(ctx)
	})
	if err != nil {
		return nil, err
	}
	if configured := o.cfg.Network.ChainID; configured != 0 && chainID != configured {
		return nil, domain.NewError(domain.KindChainUnavailable,
			"network %s is configured with chain ID %d but the endpoint reports %d", o.cfg.Network.Name, configured, chainID)
	}
	rec.ChainID = chainID

	controller := o.cfg.Identities.Controller.Address
	nonce, err := o.nonces.reserve(chainID, controller, uint64(pending), func() (uint64, error) {
		return retry(ctx, o, "pending nonce", func() (uint64, error) {
			return o.chain.PendingNonce(ctx, controller)
		})
	})
	if err != nil {
		return nil, err
	}

	return &run{
		rec:       rec,
		chainID:   chainID,
		nonce:     nonce,
		artifacts: make(map[string]*models.ContractArtifact),
		total:     pending,
	}, nil
}

func (o *Orchestrator) runStep(ctx context.Context, r *run, step *models.StepRecord, log *slog.Logger) error {
	r.current++
	ctx, span := o.tracer.Start(ctx, "step."+string(step.Kind), trace.WithAttributes(
		attribute.String("step.name", step.Name),
		attribute.String("step.artifact", step.Artifact),
	))
	defer span.End()

	log = log.With("step", step.Name, "kind", step.Kind)
	err := o.dispatch(ctx, r, step, log)
	if err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.progress.OnProgress(ctx, ProgressEvent{
			Stage:    StageStepError,
			Current:  r.current,
			Total:    r.total,
			Message:  fmt.Sprintf("%s failed: %v", step.Name, err),
			Metadata: step,
		})
		return err
	}

	step.Status = models.StepSucceeded
	step.Error = ""
	span.SetAttributes(attribute.String("tx.hash", step.Result.TransactionHash))
	o.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageStepDone,
		Current:  r.current,
		Total:    r.total,
		Message:  step.Name,
		Metadata: step,
	})
	return nil
}

// dispatch builds, signs and relays one step, retrying retryable failures
func (o *Orchestrator) dispatch(ctx context.Context, r *run, step *models.StepRecord, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	o.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageStep,
		Current:  r.current,
		Total:    r.total,
		Message:  fmt.Sprintf("Relaying %s", step.Name),
		Spinner:  true,
		Metadata: step,
	})

	unsigned, err := o.build(ctx, r, step)
	if err != nil {
		return err
	}

	sponsor := o.cfg.Identities.Sponsor
	var (
		attempts int
		rejected *models.RelayResult
	)
	result, err := retry(ctx, o, step.Name, func() (*models.RelayResult, error) {
		attempts++
		signed, err := o.sign(ctx, unsigned)
		if err != nil {
			return nil, err
		}
		step.SignedHash = signed.Hash.Hex()

		res, err := o.relay.Submit(ctx, signed, r.rec.FeeToken, sponsor)
		if err != nil {
			rejected = res
			return nil, err
		}
		if res.TransactionHash != "" && !strings.EqualFold(res.TransactionHash, step.SignedHash) {
			log.Warn("relay reported a different transaction hash", "signed", step.SignedHash, "relayed", res.TransactionHash)
		}
		return res, nil
	})
	if err != nil {
		step.Result = rejected.Clone()
		log.Error("step failed", "attempts", attempts, "kind", domain.KindOf(err), "error", err)
		return err
	}

	step.Result = result
	r.nonce++
	if step.Kind == models.StepDeploy && !common.IsHexAddress(result.ContractAddress) {
		log.Error("step relayed without a contract address", "attempts", attempts, "tx", result.TransactionHash)
		return domain.NewError(domain.KindDependencyUnresolved,
			"relay reported no contract address for %q (tx %s)", step.Name, result.TransactionHash)
	}
	log.Info("step relayed", "attempts", attempts, "tx", result.TransactionHash, "address", result.ContractAddress, "gas_used", result.GasUsed)
	return nil
}

// build resolves dependencies and encodes the step's unsigned transaction
func (o *Orchestrator) build(ctx context.Context, r *run, step *models.StepRecord) (*models.UnsignedTransaction, error) {
	for _, dep := range step.Dependencies {
		if _, ok := r.rec.AddressOf(dep); !ok {
			return nil, domain.NewError(domain.KindDependencyUnresolved,
				"step %q requires the address of %q, which has not been deployed", step.Name, dep)
		}
	}

	args := make([]string, len(step.Args))
	for i, arg := range step.Args {
		args[i] = arg
		if name, ok := models.AddressRef(arg); ok {
			addr, found := r.rec.AddressOf(name)
			if !found {
				return nil, domain.NewError(domain.KindDependencyUnresolved,
					"argument %d of step %q references %q, which has not been deployed", i, step.Name, name)
			}
			args[i] = addr
		}
	}

	artifact, err := o.artifact(ctx, r, step.Artifact)
	if err != nil {
		return nil, err
	}

	gas := o.cfg.Gas.MaxGas
	if step.GasLimit != 0 {
		if gas != 0 && step.GasLimit > gas {
			return nil, domain.NewError(domain.KindEncoding,
				"step %q gas limit %d exceeds the ceiling of %d", step.Name, step.GasLimit, gas)
		}
		gas = step.GasLimit
	}
	opts := TxOptions{
		ChainID:  r.chainID,
		Nonce:    r.nonce,
		GasLimit: gas,
		GasPrice: o.cfg.Gas.GasPrice,
	}

	if step.Kind == models.StepInitialize {
		addr, ok := r.rec.AddressOf(step.Target)
		if !ok {
			return nil, domain.NewError(domain.KindDependencyUnresolved,
				"step %q targets %q, which has not been deployed", step.Name, step.Target)
		}
		return o.builder.BuildCall(artifact, common.HexToAddress(addr), step.Method, args, opts)
	}
	return o.builder.BuildCreate(artifact, args, opts)
}

func (o *Orchestrator) artifact(ctx context.Context, r *run, path string) (*models.ContractArtifact, error) {
	if a, ok := r.artifacts[path]; ok {
		return a, nil
	}
	a, err := o.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	r.artifacts[path] = a
	return a, nil
}

// sign obtains the controller's proof and attaches it to tx
func (o *Orchestrator) sign(ctx context.Context, tx *models.UnsignedTransaction) (*models.SignedTransaction, error) {
	controller := o.cfg.Identities.Controller
	proof, err := o.signer.Sign(ctx, tx, controller)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			return nil, domain.WrapError(domain.KindSigning, err, "signing failed")
		}
		return nil, err
	}
	if controller.HasAddress() && proof.Signer != controller.Address {
		return nil, domain.NewError(domain.KindSigning,
			"proof was produced by %s, expected controller %s", proof.Signer.Hex(), controller.Address.Hex())
	}
	signed, err := models.NewSignedTransaction(tx, proof)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "invalid proof")
	}
	return signed, nil
}

// fail moves rec to failed and persists it even when ctx is cancelled
func (o *Orchestrator) fail(ctx context.Context, rec *models.DeploymentRecord, derr *domain.DeploymentError, log *slog.Logger) {
	if rec.Status.IsTerminal() {
		return
	}
	failure := models.Failure{
		Step:    derr.Step,
		Kind:    derr.Kind(),
		Message: derr.Err.Error(),
		At:      o.now(),
	}
	if err := rec.Fail(failure); err != nil {
		log.Error("failed to mark deployment failed", "error", err)
		return
	}
	log.Error("deployment failed", "step", failure.Step, "kind", failure.Kind, "error", failure.Message)
	if err := o.save(ctx, rec, rec.Step(derr.Step)); err != nil {
		log.Error("failed to persist failed deployment", "error", err)
	}
}

// save records rec and publishes the matching event. Persistence ignores
// cancellation of ctx.
func (o *Orchestrator) save(ctx context.Context, rec *models.DeploymentRecord, step *models.StepRecord) error {
	ctx = context.WithoutCancel(ctx)
	if err := o.tracker.Record(ctx, rec); err != nil {
		return fmt.Errorf("failed to record deployment %s: %w", rec.ID, err)
	}

	event := models.DeploymentEvent{
		DeploymentID: rec.ID,
		Status:       rec.Status,
		At:           rec.UpdatedAt,
	}
	if step != nil {
		event.Step = step.Name
		event.StepStatus = step.Status
		event.Message = step.Error
	}
	if rec.Failure != nil && rec.Status == models.StatusFailed {
		event.Kind = rec.Failure.Kind
		event.Message = rec.Failure.Message
	}
	if err := o.events.Publish(ctx, event); err != nil {
		o.log.Warn("failed to publish deployment event", "deployment", rec.ID, "error", err)
	}
	return nil
}

func (o *Orchestrator) writeReport(ctx context.Context, rec *models.DeploymentRecord, log *slog.Logger) string {
	if o.reports == nil {
		return ""
	}
	location, err := o.reports.Write(context.WithoutCancel(ctx), BuildReport(rec, o.now()))
	if err != nil {
		log.Warn("failed to write deployment report", "error", err)
		return ""
	}
	log.Debug("report written", "location", location)
	return location
}

// retry runs op under the configured backoff policy. Errors that are not
// retryable stop immediately; cancellation surfaces as a Cancelled error.
func retry[T any](ctx context.Context, o *Orchestrator, name string, op func() (T, error)) (T, error) {
	policy := o.cfg.Retry
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.Multiplier = policy.Multiplier
	b.MaxInterval = policy.MaxInterval
	b.RandomizationFactor = 0

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var zero T
	res, err := backoff.Retry(ctx, func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(cancelled(err))
		}
		res, err := op()
		if err != nil && !domain.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.log.Warn("retrying", "operation", name, "in", next, "error", err)
			o.progress.OnProgress(ctx, ProgressEvent{
				Stage:   StageRetry,
				Message: fmt.Sprintf("%s: %v, retrying in %s", name, err, next),
				Spinner: true,
			})
		}),
	)
	if err == nil {
		return res, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if domain.KindOf(err) == domain.KindCancelled {
		var derr *domain.Error
		if !errors.As(err, &derr) {
			err = cancelled(err)
		}
	}
	return res, err
}

func cancelled(err error) error {
	return domain.WrapError(domain.KindCancelled, err, "deployment cancelled")
}

// nonceAllocator hands out disjoint nonce ranges per controller so that
// concurrent runs never reuse a nonce.
type nonceAllocator struct {
	mu   sync.Mutex
	next map[string]uint64
}

func newNonceAllocator() *nonceAllocator {
	return &nonceAllocator{next: make(map[string]uint64)}
}

func (a *nonceAllocator) reserve(chainID uint64, account common.Address, count uint64, pending func() (uint64, error)) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	base, err := pending()
	if err != nil {
		return 0, err
	}
	key := fmt.Sprintf("%d/%s", chainID, account.Hex())
	if reserved := a.next[key]; reserved > base {
		base = reserved
	}
	a.next[key] = base + count
	return base, nil
}
