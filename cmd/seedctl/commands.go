package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"headstart/internal/catalog"
	"headstart/internal/orchestrator"
)

type SeedCmd struct {
	File string `short:"f" required:"" help:"Seed document (.yaml, .yml or .json)" type:"existingfile"`
}

func (s *SeedCmd) Run(rt *runtime) error {
	seed, err := loadSeed(s.File)
	if err != nil {
		return err
	}
	a, err := rt.app()
	if err != nil {
		return err
	}
	defer a.Close()
	resp, err := a.Seeder.Seed(rt.ctx, seed)
	if err != nil {
		return err
	}
	return writeJSON(rt, resp)
}

// loadSeed reads a seed document. Unknown keys are rejected so typos do not silently drop buyers.
func loadSeed(path string) (orchestrator.EnvironmentSeed, error) {
	var seed orchestrator.EnvironmentSeed
	b, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(&seed)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		err = dec.Decode(&seed)
	default:
		return seed, fmt.Errorf("seed file %s: unsupported extension", path)
	}
	if err != nil {
		return seed, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

type StagingRestoreCmd struct{}

func (s *StagingRestoreCmd) Run(rt *runtime) error {
	a, err := rt.app()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Seeder.PostStagingRestore(rt.ctx); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "staging restore complete")
	return nil
}

type DeleteMessageSendersCmd struct {
	Yes bool `short:"y" help:"Do not ask for confirmation"`
}

func (d *DeleteMessageSendersCmd) Run(rt *runtime) error {
	if !d.Yes {
		return fmt.Errorf("refusing to delete every message sender of client %q without --yes", rt.cfg.ClientID)
	}
	a, err := rt.app()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Seeder.PurgeMessageSenders(rt.ctx); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "message senders deleted")
	return nil
}

type MessageSendersCmd struct {
	Delete DeleteMessageSendersCmd `cmd:"" help:"Delete every message sender visible to the configured client"`
}

type RunsCmd struct {
	Org   string `help:"Only runs for this organization (use client:<id> for maintenance runs)"`
	Limit int    `default:"20" help:"Maximum number of runs"`
}

func (r *RunsCmd) Run(rt *runtime) error {
	a, err := rt.app()
	if err != nil {
		return err
	}
	defer a.Close()
	runs, err := a.Runs.List(rt.ctx, r.Org, r.Limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", run.StartedAt.Format("2006-01-02T15:04:05Z07:00"), run.ID, run.OrgID, run.Kind, run.Status)
		if run.LastStep != "" {
			line += "\t" + run.LastStep
		}
		if run.Error != "" {
			line += "\t" + run.Error
		}
		fmt.Fprintln(rt.out, line)
	}
	return nil
}

type CatalogShowCmd struct {
	Section string `arg:"" optional:"" enum:"all,profiles,roles,senders,incrementors,indices,clients,events" default:"all" help:"Section to print"`
}

func (c *CatalogShowCmd) Run(rt *runtime) error {
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	var v any
	switch c.Section {
	case "profiles":
		v = cat.Profiles()
	case "roles":
		v = cat.SellerRoles
	case "senders":
		v = cat.MessageSenders
	case "incrementors":
		v = cat.Incrementors
	case "indices":
		v = cat.XpIndices
	case "clients":
		v = cat.APIClients
	case "events":
		v = cat.IntegrationEvents
	default:
		v = cat
	}
	enc := yaml.NewEncoder(rt.out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

type CatalogCmd struct {
	Show CatalogShowCmd `cmd:"" help:"Print the catalog as YAML"`
}

func writeJSON(rt *runtime, v any) error {
	enc := json.NewEncoder(rt.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
