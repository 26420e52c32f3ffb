// Package translate executes reconciliation plans against an external
// AI translation capability.
//
// The Translator interface is the only contact point with the model;
// everything else — the bounded worker pool, the retry state machine,
// rate-limit backpressure shared across workers, atomic target writes,
// and ledger updates — lives here. One action's failure never aborts
// the batch: it is recorded in its Outcome and the run continues.
package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MurphyLo/Document-Synchronizer/analyze"
	"github.com/MurphyLo/Document-Synchronizer/docscan"
	"github.com/MurphyLo/Document-Synchronizer/ledger"
	"github.com/MurphyLo/Document-Synchronizer/plan"
)

// ---------------------------------------------------------------------------
// Translator capability
// ---------------------------------------------------------------------------

// Request is one translation unit handed to the Translator.
type Request struct {
	// SourceContent is the primary-language document.
	SourceContent string
	// SourceLang and TargetLang are language tags (e.g. "en", "zh").
	SourceLang string
	TargetLang string
	// PriorTargetContent, when non-empty, is the existing translation.
	// Translators may use it to improve rather than retranslate from
	// scratch; they are free to ignore it.
	PriorTargetContent string
}

// Translator generates a target-language document for a request.
// Implementations classify failures with the error taxonomy below.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrRateLimited marks a transient provider throttle (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
	// ErrNetworkUnavailable marks a transient transport failure.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrMalformedResponse marks a permanent failure: the provider
	// answered, but with nothing usable. Not retried.
	ErrMalformedResponse = errors.New("malformed response")
)

// RateLimitError carries the provider-suggested wait on a 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetworkUnavailable)
}

// ErrorKind labels a failed outcome for reporting.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindRateLimited ErrorKind = "rate-limited"
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindMalformed   ErrorKind = "malformed"
	ErrorKindIO          ErrorKind = "io"
	ErrorKindCancelled   ErrorKind = "cancelled"
)

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimited
	case errors.Is(err, ErrNetworkUnavailable):
		return ErrorKindNetwork
	case errors.Is(err, ErrMalformedResponse):
		return ErrorKindMalformed
	default:
		return ErrorKindIO
	}
}

// ---------------------------------------------------------------------------
// Outcomes
// ---------------------------------------------------------------------------

// OutcomeStatus is the terminal state of one action.
type OutcomeStatus string

const (
	OutcomeDone    OutcomeStatus = "done"
	OutcomeError   OutcomeStatus = "error"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome records what happened to one plan action. The slice returned
// by Execute preserves plan order regardless of completion order.
type Outcome struct {
	Action     plan.Action
	Status     OutcomeStatus
	ErrorKind  ErrorKind
	Err        error
	Attempts   int
	TargetPath string
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls plan execution.
type Options struct {
	// Translator performs the actual generation.
	Translator Translator
	// Ledger receives a record after each successful write.
	Ledger ledger.Store
	// BaseDir is the docs root containing one directory per language.
	BaseDir string
	// SourceLang is the primary language tag, passed to the Translator.
	SourceLang string
	// FingerprintMode must match the mode the plan was scanned with,
	// so recorded target fingerprints agree with future scans.
	FingerprintMode docscan.FingerprintMode
	// MaxConcurrent bounds in-flight Translator calls. Default: 3.
	MaxConcurrent int
	// MaxRetries is the number of retries after the first attempt for
	// transient failures. Zero disables retries; a negative value
	// selects the default of 3.
	MaxRetries int
	// RetryBaseDelay is the first backoff delay (doubles each retry,
	// capped at RetryMaxDelay). Defaults: 1s base, 30s cap.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// RequestDelay spaces out task dispatch.
	RequestDelay time.Duration
	// SkipVerify disables structural verification of generations.
	SkipVerify bool
	// Verbose enables detailed logging.
	Verbose bool
	// OnLog, OnError and OnProgress report execution; all optional.
	OnLog      func(format string, args ...any)
	OnError    func(format string, args ...any)
	OnProgress func(done, total int)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) progress(done, total int) {
	if o.OnProgress != nil {
		o.OnProgress(done, total)
	}
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 3
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries >= 0 {
		return o.MaxRetries
	}
	return 3
}

func (o *Options) effectiveBaseDelay() time.Duration {
	if o.RetryBaseDelay > 0 {
		return o.RetryBaseDelay
	}
	return time.Second
}

func (o *Options) effectiveMaxDelay() time.Duration {
	if o.RetryMaxDelay > 0 {
		return o.RetryMaxDelay
	}
	return 30 * time.Second
}

// ---------------------------------------------------------------------------
// Retry state machine
// ---------------------------------------------------------------------------

// retryState is an explicit bounded retry machine: a retry budget plus
// the next backoff delay, doubling up to a cap.
type retryState struct {
	retries int
	max     int
	delay   time.Duration
	cap     time.Duration
}

func newRetryState(opts *Options) *retryState {
	return &retryState{
		max:   opts.effectiveMaxRetries(),
		delay: opts.effectiveBaseDelay(),
		cap:   opts.effectiveMaxDelay(),
	}
}

// allow reports whether another retry is permitted.
func (r *retryState) allow() bool { return r.retries < r.max }

// advance consumes one retry and doubles the next delay.
func (r *retryState) advance() {
	r.retries++
	r.delay *= 2
	if r.delay > r.cap {
		r.delay = r.cap
	}
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause shared by all workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		if remaining > 100*time.Millisecond {
			remaining = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(remaining):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Plan execution
// ---------------------------------------------------------------------------

// Execute runs every non-SKIP action of the plan through the Translator
// under the configured concurrency bound and returns one Outcome per
// action, in plan order. Dispatch follows plan order; completion order
// is unspecified. Cancellation stops dispatch and records undispatched
// and abandoned actions as cancelled errors.
func Execute(ctx context.Context, p *plan.Plan, opts Options) []Outcome {
	outcomes := make([]Outcome, len(p.Actions))

	var pending []int
	for i, act := range p.Actions {
		if act.Kind == plan.KindSkip {
			outcomes[i] = Outcome{Action: act, Status: OutcomeSkipped}
			continue
		}
		pending = append(pending, i)
	}
	total := len(pending)

	rl := &rateLimitState{}
	sem := make(chan struct{}, opts.effectiveMaxConcurrent())
	var wg sync.WaitGroup
	var completed atomic.Int64

	for n, i := range pending {
		act := p.Actions[i]

		if ctx.Err() != nil {
			outcomes[i] = cancelledOutcome(act, ctx.Err())
			continue
		}
		if n > 0 && opts.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				outcomes[i] = cancelledOutcome(act, ctx.Err())
				continue
			case <-time.After(opts.RequestDelay):
			}
		}

		select {
		case <-ctx.Done():
			outcomes[i] = cancelledOutcome(act, ctx.Err())
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, act plan.Action) {
			defer func() {
				<-sem
				wg.Done()
			}()
			outcomes[i] = executeAction(ctx, act, &opts, rl)
			opts.progress(int(completed.Add(1)), total)
		}(i, act)
	}

	wg.Wait()
	return outcomes
}

func cancelledOutcome(act plan.Action, err error) Outcome {
	return Outcome{
		Action:    act,
		Status:    OutcomeError,
		ErrorKind: ErrorKindCancelled,
		Err:       err,
	}
}

// thinkTagRE matches reasoning traces some models prepend to output.
var thinkTagRE = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// StripThinkTags removes <think>...</think> blocks from model output.
func StripThinkTags(s string) string {
	return thinkTagRE.ReplaceAllString(s, "")
}

// executeAction drives one action to a terminal outcome: translate with
// retries, verify, write the target file, then record the ledger entry.
// The file write and the ledger put form a unit: a failed write never
// updates the ledger.
func executeAction(ctx context.Context, act plan.Action, opts *Options, rl *rateLimitState) Outcome {
	out := Outcome{
		Action:     act,
		TargetPath: filepath.Join(opts.BaseDir, act.Language, filepath.FromSlash(act.RelPath)),
	}
	req := Request{
		SourceContent: act.SourceContent,
		SourceLang:    opts.SourceLang,
		TargetLang:    act.Language,
	}
	if act.Kind == plan.KindUpdate {
		req.PriorTargetContent = act.PriorTargetContent
	}

	retry := newRetryState(opts)
	for {
		if err := rl.waitIfPaused(ctx); err != nil {
			return cancelledOutcome(act, err)
		}

		out.Attempts++
		text, err := opts.Translator.Translate(ctx, req)
		if err == nil {
			text = StripThinkTags(text)
			if strings.TrimSpace(text) == "" {
				err = fmt.Errorf("%w: empty generation", ErrMalformedResponse)
			}
		}
		if err == nil && !opts.SkipVerify {
			if verr := analyze.Verify(act.SourceContent, text); verr != nil {
				err = fmt.Errorf("%w: %v", ErrMalformedResponse, verr)
			}
		}

		if err == nil {
			return finishAction(act, text, out, opts)
		}

		if ctx.Err() != nil {
			out.Status = OutcomeError
			out.ErrorKind = ErrorKindCancelled
			out.Err = ctx.Err()
			return out
		}
		if !IsTransient(err) || !retry.allow() {
			opts.logError("  %s [%s]: %v (giving up after %d attempt(s))",
				act.RelPath, act.Language, err, out.Attempts)
			out.Status = OutcomeError
			out.ErrorKind = kindOf(err)
			out.Err = err
			return out
		}

		wait := retry.delay
		rateLimited := false
		var rle *RateLimitError
		if errors.As(err, &rle) {
			rateLimited = true
			if rle.RetryAfter > 0 {
				wait = rle.RetryAfter
			}
			// Pause every worker, not just this one.
			rl.pause(wait)
		}
		retry.advance()

		opts.log("  %s [%s]: %v, retrying in %v (attempt %d/%d)",
			act.RelPath, act.Language, err, wait, out.Attempts, retry.max+1)

		select {
		case <-ctx.Done():
			return cancelledOutcome(act, ctx.Err())
		case <-time.After(wait):
		}
		if rateLimited {
			rl.unpause()
		}
	}
}

// finishAction writes the generated content and records the ledger
// entry for a successful translation.
func finishAction(act plan.Action, text string, out Outcome, opts *Options) Outcome {
	if err := writeFileAtomic(out.TargetPath, []byte(text)); err != nil {
		out.Status = OutcomeError
		out.ErrorKind = ErrorKindIO
		out.Err = fmt.Errorf("writing %s: %w", out.TargetPath, err)
		return out
	}

	rec := ledger.Record{
		PrimaryFingerprint: act.SourceFingerprint,
		TargetFingerprint:  docscan.Fingerprint([]byte(text), opts.FingerprintMode),
		SyncedAt:           time.Now().UTC(),
	}
	if err := opts.Ledger.Put(act.Key(), rec); err != nil {
		// File is on disk; a missing record only causes a conservative
		// re-check next run. Still an error outcome.
		out.Status = OutcomeError
		out.ErrorKind = ErrorKindIO
		out.Err = fmt.Errorf("recording ledger entry for %s: %w", act.Key(), err)
		return out
	}

	out.Status = OutcomeDone
	return out
}

// writeFileAtomic writes content via a temp file and rename so readers
// never observe a partial document.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".docsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
