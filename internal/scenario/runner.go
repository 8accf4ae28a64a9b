// Package scenario replays scripted channel sessions and checks each
// step's outcome.
package scenario

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/model"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
)

// Run opens a fresh channel for s and executes its steps in order. Steps
// keep running after a failed expectation so every mismatch is reported.
func Run(ctx context.Context, s *Scenario, observers ...model.Observer) (*RunResult, error) {
	width, err := pipe.ParseWidth(fmt.Sprint(s.Width))
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	algo, err := checksum.ParseAlgorithm(s.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	opts := []pipe.Option{
		pipe.WithName(s.Name),
		pipe.WithGuard(checksum.NewGuard(checksum.WithAlgorithm(algo))),
		pipe.WithEvaluator(driver.NewStaticEvaluator(s.Preconditions)),
		pipe.WithObserver(model.Observers(observers)),
	}
	if s.MaxOutflow != 0 {
		opts = append(opts, pipe.WithMaxOutflow(s.MaxOutflow))
	}
	if len(s.Drivers) > 0 {
		refs := make([]driver.Ref, 0, len(s.Drivers))
		for _, d := range s.Drivers {
			refs = append(refs, driver.Ref{
				Name:         d.Name,
				Precondition: driver.Request{Condition: d.Condition, Command: d.Command},
			})
		}
		opts = append(opts, pipe.WithCatalog(driver.NewMapCatalog(refs...)))
	}

	ch, err := pipe.Open(width, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	defer ch.Close()

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Steps),
	}

	for i, step := range s.Steps {
		actual, detail := runStep(ctx, ch, step)

		expected := strings.ToLower(strings.TrimSpace(step.Expect))
		if expected == "" {
			expected = outcomeOK
		}

		sr := StepResult{
			Index:    i + 1,
			Op:       step.Op,
			Expected: expected,
			Actual:   actual,
			Outflow:  ch.Outflow(),
			State:    ch.DriverState().String(),
			Detail:   detail,
		}
		sr.Passed = actual == expected

		if step.Outflow != nil && *step.Outflow != sr.Outflow {
			sr.Passed = false
			sr.Detail = joinDetail(sr.Detail, fmt.Sprintf("outflow %d, want %d", sr.Outflow, *step.Outflow))
		}
		if step.State != "" && !strings.EqualFold(step.State, sr.State) {
			sr.Passed = false
			sr.Detail = joinDetail(sr.Detail, fmt.Sprintf("state %s, want %s", sr.State, step.State))
		}

		if sr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Steps = append(result.Steps, sr)
	}

	return result, nil
}

// runStep executes one step and returns its outcome name.
func runStep(ctx context.Context, ch *pipe.Channel, step Step) (string, string) {
	var err error
	switch strings.ToLower(step.Op) {
	case "precheck":
		if step.Packet != "" {
			packet, perr := parsePacket(step.Packet)
			if perr != nil {
				return "bad_step", perr.Error()
			}
			_, err = ch.Guard().PrecheckPacket(step.ID, packet)
		} else {
			_, err = ch.Guard().Precheck(step.ID, step.Check)
		}
	case "invalidate":
		err = ch.Guard().Invalidate(step.ID)
	case "validate":
		sig, serr := ch.Guard().Sign(step.Check)
		if serr != nil {
			return string(pipe.KindOf(serr)), serr.Error()
		}
		if ch.Guard().Validate(step.ID, sig) {
			return outcomeOK, ""
		}
		return outcomeInvalid, ""
	case "attach":
		mode := driver.Mode(strings.ToLower(step.Mode))
		if mode == "" {
			mode = driver.ModeForced
		}
		ref := driver.Ref{
			Name:         step.Driver,
			Precondition: driver.Request{Condition: step.Condition, Command: step.Command},
		}
		err = ch.Attach(ctx, ref, mode)
	case "detach":
		err = ch.Detach()
	case "send":
		packet, perr := parsePacket(step.Packet)
		if perr != nil {
			return "bad_step", perr.Error()
		}
		_, err = ch.SendContext(ctx, packet, step.ID)
	case "close":
		err = ch.Close()
	default:
		return "bad_step", fmt.Sprintf("unknown op %q", step.Op)
	}
	if err != nil {
		return string(pipe.KindOf(err)), err.Error()
	}
	return outcomeOK, ""
}

// parsePacket decodes a hex packet, with or without a 0x prefix.
func parsePacket(raw string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("packet %q: %w", raw, err)
	}
	return b, nil
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and runs it.
func LoadAndRun(ctx context.Context, path string, observers ...model.Observer) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	result, err := Run(ctx, s, observers...)
	if err != nil {
		return nil, err
	}
	result.File = path

	return result, nil
}
