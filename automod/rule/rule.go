package rule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/guildwarden/warden/automod/event"

	"github.com/google/uuid"
)

// Trigger lists the event kinds which activate a rule. In documents it is either a single kind name or an array of names.
type Trigger []event.Kind

func (t *Trigger) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var k event.Kind
		if err := json.Unmarshal(b, &k); err != nil {
			return err
		}
		*t = Trigger{k}
		return nil
	}
	var kinds []event.Kind
	if err := json.Unmarshal(b, &kinds); err != nil {
		return err
	}
	*t = kinds
	return nil
}

func (t Trigger) Matches(k event.Kind) bool {
	return slices.Contains(t, k)
}

func (t Trigger) Validate() error {
	if len(t) == 0 {
		return errors.New("trigger must name at least one event kind")
	}
	for _, k := range t {
		if !k.IsTrigger() {
			return fmt.Errorf("unknown trigger kind %q", k)
		}
	}
	return nil
}

type Rule struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Enabled bool      `json:"enabled"`
	Trigger Trigger   `json:"trigger"`
	// empty conditions always hold
	Conditions Condition `json:"conditions"`
	// also fire when the conditions evaluate to unknown
	FireOnUnknown bool     `json:"fire_on_unknown,omitempty"`
	Actions       []Action `json:"actions"`
}

func (r *Rule) Validate() error {
	if r.Name == "" {
		return errors.New("rule name must not be empty")
	}
	if err := r.Trigger.Validate(); err != nil {
		return err
	}
	if err := r.Conditions.Validate(); err != nil {
		return fmt.Errorf("conditions: %w", err)
	}
	return validateActions("actions", r.Actions)
}

// RuleSet is an ordered collection of rules. A nil GuildID makes the set global.
type RuleSet struct {
	ID          uuid.UUID        `json:"id"`
	GuildID     *event.Snowflake `json:"guild_id,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Enabled     bool             `json:"enabled"`
	Editable    bool             `json:"editable"`
	Author      string           `json:"author,omitempty"`
	Category    string           `json:"category,omitempty"`
	Rules       []Rule           `json:"rules"`
}

func (rs *RuleSet) IsGlobal() bool {
	return rs.GuildID == nil
}

func (rs *RuleSet) Validate() error {
	if rs.Name == "" {
		return errors.New("rule set name must not be empty")
	}
	seen := make(map[uuid.UUID]bool, len(rs.Rules))
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		if r.ID != uuid.Nil {
			if seen[r.ID] {
				return fmt.Errorf("rule %d (%s): duplicate id %s", i, r.Name, r.ID)
			}
			seen[r.ID] = true
		}
	}
	return nil
}

// namespace for ids derived from rule set documents which don't carry them
var idNamespace = uuid.MustParse("3f9d2b1e-7c4a-5e60-9b8d-2a1c6f4e8d70")

// AssignIDs fills in missing ids, so that documents written by hand don't need them. Derived ids are stable across parses of the same document: a set's id comes from its guild and name, a rule's from its set id, position and name.
func (rs *RuleSet) AssignIDs() {
	if rs.ID == uuid.Nil {
		scope := "global"
		if rs.GuildID != nil {
			scope = rs.GuildID.String()
		}
		rs.ID = uuid.NewSHA1(idNamespace, []byte(scope+"/"+rs.Name))
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.NewSHA1(rs.ID, []byte(strconv.Itoa(i)+"/"+r.Name))
		}
	}
}

func strictDecode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after document")
	}
	return nil
}

// ParseRuleSet decodes and validates a single rule set document. Unknown fields anywhere in the document are rejected.
func ParseRuleSet(raw []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := strictDecode(bytes.NewReader(raw), &rs); err != nil {
		return nil, fmt.Errorf("decoding rule set: %w", err)
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set %q: %w", rs.Name, err)
	}
	rs.AssignIDs()
	return &rs, nil
}

// ParseRuleSets accepts either one rule set document or an array of them.
func ParseRuleSets(raw []byte) ([]*RuleSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		rs, err := ParseRuleSet(raw)
		if err != nil {
			return nil, err
		}
		return []*RuleSet{rs}, nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, fmt.Errorf("decoding rule sets: %w", err)
	}
	out := make([]*RuleSet, 0, len(docs))
	for i, doc := range docs {
		rs, err := ParseRuleSet(doc)
		if err != nil {
			return nil, fmt.Errorf("rule set %d: %w", i, err)
		}
		out = append(out, rs)
	}
	return out, nil
}
