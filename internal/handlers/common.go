// Package handlers implements the seven stage handlers from spec.md §4.F.
// Every handler satisfies scheduler.Handler; task.status is exclusively the
// scheduler's to mutate, so handlers only ever touch progress/message via
// the injected report callback and return an output document or an error.
package handlers

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/journeyforge/orchestrator/internal/aigateway"
	"github.com/journeyforge/orchestrator/internal/config"
	"github.com/journeyforge/orchestrator/internal/fetcher"
	"github.com/journeyforge/orchestrator/internal/githubstats"
	"github.com/journeyforge/orchestrator/internal/store"
)

// Deps are the external collaborators every handler is built from.
type Deps struct {
	Gateway aigateway.Gateway
	Store   store.Store
	Fetcher *fetcher.Fetcher
	GitHub  githubstats.Client
	Config  config.Config
}

// decode converts an opaque aigateway.Document into a typed struct. It is
// the one place each handler crosses from the AI gateway's opaque boundary
// into this module's typed inter-stage currency.
func decode(document aigateway.Document, into any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           into,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(document); err != nil {
		return fmt.Errorf("decode ai document: %w", err)
	}
	return nil
}

// encode converts a typed struct into the opaque document shape the gateway
// expects as schema/context input.
func encode(v any) (aigateway.Document, error) {
	var out aigateway.Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func now() time.Time { return time.Now() }
