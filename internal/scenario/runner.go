package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/client"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Status   int
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Runner executes scenarios against one twin.
type Runner struct {
	base  string
	http  *http.Client
	admin *client.Client
}

// NewRunner creates a Runner for the twin at baseURL. hc may be nil.
func NewRunner(baseURL string, hc *http.Client) *Runner {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")
	return &Runner{
		base:  base,
		http:  hc,
		admin: client.New(base, client.WithHTTPClient(hc)),
	}
}

// Run executes s. Setup failures abort the scenario with an error; step
// failures are recorded and the remaining steps still run. Faults set up
// by the scenario are cleared when it finishes.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{ScenarioName: s.Name, Passed: true}

	vars := maps.Clone(s.Variables)
	if vars == nil {
		vars = map[string]string{}
	}

	token, err := r.setup(ctx, &s.Setup)
	defer func() {
		for op := range s.Setup.Faults {
			_ = r.admin.ClearOpFault(context.WithoutCancel(ctx), op)
		}
	}()
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	for i := range s.Steps {
		sr := r.runStep(ctx, &s.Steps[i], vars, token)
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) setup(ctx context.Context, st *Setup) (string, error) {
	if st.Reset {
		if err := r.admin.Reset(ctx); err != nil {
			return "", fmt.Errorf("reset: %w", err)
		}
	}
	if st.Seed != "" {
		if err := r.admin.Seed(ctx, st.Seed); err != nil {
			return "", fmt.Errorf("seed: %w", err)
		}
	}
	if len(st.Config) > 0 {
		if _, err := r.admin.UpdateConfig(ctx, st.Config); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
	}
	for op, count := range st.Faults {
		if err := r.admin.InjectOpFault(ctx, op, count); err != nil {
			return "", fmt.Errorf("fault %s: %w", op, err)
		}
	}
	if st.Login == "" {
		return "", nil
	}
	if err := r.admin.RequestOTP(ctx, st.Login); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	codes, err := r.admin.OTPCodes(ctx, st.Login)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if len(codes) == 0 {
		return "", fmt.Errorf("login: no code issued for %s", st.Login)
	}
	token, err := r.admin.VerifyOTP(ctx, st.Login, codes[len(codes)-1].Code)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return token, nil
}

func (r *Runner) runStep(ctx context.Context, step *Step, vars map[string]string, token string) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	err := func() error {
		req, err := r.newRequest(ctx, &step.Request, vars, token)
		if err != nil {
			return err
		}
		resp, err := r.http.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		sr.Status = resp.StatusCode
		if err := verify(&step.Assert, resp.StatusCode, body, vars); err != nil {
			return err
		}
		return capture(step.Capture, body, vars)
	}()
	sr.Duration = time.Since(start)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}
	sr.Passed = true
	return sr
}

// newRequest expands {{var}} templates in the path, headers and body.
func (r *Runner) newRequest(ctx context.Context, rq *Request, vars map[string]string, token string) (*http.Request, error) {
	path, err := expand(rq.Path, vars)
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	var body io.Reader
	if rq.Body != nil {
		v, err := expandAll(rq.Body, vars)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(rq.Method), r.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range rq.Headers {
		if v, err = expand(v, vars); err != nil {
			return nil, fmt.Errorf("header %s: %w", k, err)
		}
		req.Header.Set(k, v)
	}
	return req, nil
}

func verify(a *Assert, status int, body []byte, vars map[string]string) error {
	if a.Status != 0 && status != a.Status {
		return fmt.Errorf("expected status %d, got %d: %s", a.Status, status, bytes.TrimSpace(body))
	}
	if a.BodyContains != "" {
		want, err := expand(a.BodyContains, vars)
		if err != nil {
			return fmt.Errorf("body_contains: %w", err)
		}
		if !strings.Contains(string(body), want) {
			return fmt.Errorf("body does not contain %q", want)
		}
	}
	if len(a.Body) == 0 {
		return nil
	}
	want, err := expandAll(a.Body, vars)
	if err != nil {
		return fmt.Errorf("assert: %w", err)
	}
	return checkBody(body, want.(map[string]any))
}

// capture stores JSON path values from body into vars for later steps.
func capture(paths map[string]string, body []byte, vars map[string]string) error {
	if len(paths) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("capture: body is not valid JSON: %w", err)
	}
	for name, p := range paths {
		v, ok, err := lookup(doc, p)
		if err != nil {
			return fmt.Errorf("capture %s: %w", name, err)
		}
		if !ok {
			return fmt.Errorf("capture %s: %s not found", name, p)
		}
		vars[name] = stringify(v)
	}
	return nil
}
