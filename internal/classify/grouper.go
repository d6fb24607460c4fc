package classify

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EventUnit is one processable lifecycle event: an outbound envelope,
// optionally paired with its separate confirmation. A proc-shaped file is
// self-sufficient and has no Response. An envelope with no confirmation
// anywhere is still processed, as provisional.
type EventUnit struct {
	Envelope *File
	Response *File
}

// Provisional reports whether the unit carries no confirmation at all
func (u *EventUnit) Provisional() bool {
	return !u.Envelope.Confirmed && u.Response == nil
}

// Group is the processing plan for one access key: principal first, then
// events in submission order
type Group struct {
	AccessKey string
	Principal *File
	Events    []*EventUnit
}

// SkippedFile is a file excluded from processing, with the reason. Skips
// are not errors.
type SkippedFile struct {
	File   *File
	Reason string
}

// Plan is the per-key processing plan for one batch
type Plan struct {
	Groups  []*Group
	Skipped []SkippedFile
}

// Grouper groups classified files by access key and pairs event envelopes
// with their confirmations
type Grouper struct {
	log *logrus.Logger
}

// NewGrouper creates a new grouper
func NewGrouper(log *logrus.Logger) *Grouper {
	return &Grouper{log: log}
}

// BuildPlan groups files by access key, deduplicates principals, pairs
// events, and fixes intra-group order. Groups keep first-seen key order.
func (g *Grouper) BuildPlan(files []*File) *Plan {
	plan := &Plan{}
	byKey := make(map[string]*Group)

	for _, f := range files {
		if f.AccessKey == "" {
			plan.Skipped = append(plan.Skipped, SkippedFile{File: f, Reason: skipReason(f, "no access key found")})
			continue
		}
		if f.Kind == KindUnknown {
			plan.Skipped = append(plan.Skipped, SkippedFile{File: f, Reason: skipReason(f, "unrecognized document shape")})
			continue
		}
		group, ok := byKey[f.AccessKey]
		if !ok {
			group = &Group{AccessKey: f.AccessKey}
			byKey[f.AccessKey] = group
			plan.Groups = append(plan.Groups, group)
		}
		if f.IsPrincipal() {
			g.placePrincipal(plan, group, f)
		}
	}

	for _, group := range plan.Groups {
		g.pairEvents(plan, group, files)
	}

	return plan
}

// placePrincipal keeps one principal per key, preferring the proc shape
// that carries its own protocol. Losers are skipped duplicates.
func (g *Grouper) placePrincipal(plan *Plan, group *Group, f *File) {
	if group.Principal == nil {
		group.Principal = f
		return
	}
	keep, drop := group.Principal, f
	if !keep.HasProtocol && f.HasProtocol {
		keep, drop = f, group.Principal
		group.Principal = f
	}
	g.log.WithFields(logrus.Fields{
		"access_key": group.AccessKey,
		"kept":       keep.Filename,
		"dropped":    drop.Filename,
	}).Warn("Duplicate principal document in batch")
	plan.Skipped = append(plan.Skipped, SkippedFile{
		File:   drop,
		Reason: fmt.Sprintf("duplicate of %s", keep.Filename),
	})
}

// pairEvents matches outbound envelopes with confirmations sharing the
// same key, document family and event-type code
func (g *Grouper) pairEvents(plan *Plan, group *Group, files []*File) {
	var envelopes, responses []*File
	for _, f := range files {
		if f.AccessKey != group.AccessKey || !f.IsEvent() {
			continue
		}
		switch {
		case f.IsResponse:
			responses = append(responses, f)
		case f.Confirmed:
			// proc shape, self-sufficient
			group.Events = append(group.Events, &EventUnit{Envelope: f})
		default:
			envelopes = append(envelopes, f)
		}
	}

	used := make(map[*File]bool)
	for _, env := range envelopes {
		unit := &EventUnit{Envelope: env}
		for _, resp := range responses {
			if used[resp] || resp.Family != env.Family || resp.EventCode != env.EventCode {
				continue
			}
			used[resp] = true
			unit.Response = resp
			break
		}
		group.Events = append(group.Events, unit)
	}

	for _, resp := range responses {
		if !used[resp] {
			g.log.WithFields(logrus.Fields{
				"access_key": group.AccessKey,
				"file":       resp.Filename,
				"event_type": resp.EventCode,
			}).Warn("Event confirmation without a matching envelope")
			plan.Skipped = append(plan.Skipped, SkippedFile{File: resp, Reason: "no matching event envelope"})
		}
	}

	// Events keep submission order within the group
	for i := 1; i < len(group.Events); i++ {
		for j := i; j > 0 && group.Events[j].Envelope.Index < group.Events[j-1].Envelope.Index; j-- {
			group.Events[j], group.Events[j-1] = group.Events[j-1], group.Events[j]
		}
	}
}

func skipReason(f *File, fallback string) string {
	if f.Diagnostic != "" {
		return f.Diagnostic
	}
	return fallback
}
