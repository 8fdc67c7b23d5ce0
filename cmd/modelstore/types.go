package main

import (
	"github.com/jward/modelstore"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLINode is a JSON-friendly node representation.
type CLINode struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	SpecVersion string `json:"spec_version,omitempty"`
	Name        string `json:"name,omitempty"`
	IDKind      string `json:"id_kind"`
	RefCount    *int   `json:"ref_count,omitempty"`
}

// CLIProperty is one property of a node with its values.
type CLIProperty struct {
	Property   string `json:"property"`
	Collection bool   `json:"collection"`
	Values     []any  `json:"values"`
}

// CLINodeDetail is a node with all properties and its referrers.
type CLINodeDetail struct {
	Node       CLINode       `json:"node"`
	Properties []CLIProperty `json:"properties"`
	Referrers  []string      `json:"referrers"`
	Digest     string        `json:"digest"`
}

// CLITypeCount is the number of nodes of one type.
type CLITypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// CLISummary is a JSON-friendly graph summary.
type CLISummary struct {
	NodeCount     int            `json:"node_count"`
	Types         []CLITypeCount `json:"types"`
	TopReferenced []CLINode      `json:"top_referenced"`
}

// CLIRunResult is the outcome of running scripts against a fresh store.
type CLIRunResult struct {
	Namespace string         `json:"namespace"`
	Digest    string         `json:"digest"`
	Summary   CLISummary     `json:"summary"`
	Nodes     []CLINode      `json:"nodes"`
	Cycles    [][]string     `json:"cycles,omitempty"`
	Detail    *CLINodeDetail `json:"detail,omitempty"`
}

// CLIImportStats reports a catalog import.
type CLIImportStats struct {
	Database string `json:"database"`
	Version  string `json:"version"`
	Licenses int    `json:"licenses"`
	Replaced int    `json:"replaced"`
}

// --- Conversion helpers ---

func toCLINode(n modelstore.NodeResult) CLINode {
	out := CLINode{
		ID:          n.ID,
		Type:        n.Type,
		SpecVersion: n.SpecVersion,
		Name:        n.Name,
		IDKind:      n.IDKind.String(),
	}
	if n.RefCount >= 0 {
		rc := n.RefCount
		out.RefCount = &rc
	}
	return out
}

func toCLINodes(nodes []modelstore.NodeResult) []CLINode {
	out := make([]CLINode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toCLINode(n))
	}
	return out
}

// cliValue converts a store value into a JSON-friendly value. References
// and individuals become single-key objects.
func cliValue(v modelstore.Value) any {
	switch val := v.(type) {
	case modelstore.TypedRef:
		m := map[string]string{"ref": val.ID}
		if val.Type != "" {
			m["type"] = val.Type
		}
		return m
	case modelstore.Individual:
		return map[string]string{"individual": val.URI}
	}
	return v
}

func toCLIDetail(d *modelstore.NodeDetail) *CLINodeDetail {
	if d == nil {
		return nil
	}
	out := &CLINodeDetail{
		Node:       toCLINode(d.Node),
		Properties: make([]CLIProperty, 0, len(d.Properties)),
		Referrers:  make([]string, 0, len(d.Referrers)),
		Digest:     d.Digest,
	}
	for _, p := range d.Properties {
		values := make([]any, 0, len(p.Values))
		for _, v := range p.Values {
			values = append(values, cliValue(v))
		}
		out.Properties = append(out.Properties, CLIProperty{
			Property:   p.Property.String(),
			Collection: p.Collection,
			Values:     values,
		})
	}
	for _, r := range d.Referrers {
		out.Referrers = append(out.Referrers, r.ID)
	}
	return out
}

func toCLISummary(s *modelstore.GraphSummary) CLISummary {
	out := CLISummary{
		NodeCount:     s.NodeCount,
		Types:         make([]CLITypeCount, 0, len(s.Types)),
		TopReferenced: toCLINodes(s.TopReferenced),
	}
	for _, tc := range s.Types {
		out.Types = append(out.Types, CLITypeCount{Type: tc.Type, Count: tc.Count})
	}
	return out
}
