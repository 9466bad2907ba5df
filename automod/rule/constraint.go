package rule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/guildwarden/warden/automod/event"

	"github.com/rivo/uniseg"
)

var errExactlyOne = errors.New("must set exactly one field")

func countSet(set ...bool) int {
	n := 0
	for _, s := range set {
		if s {
			n++
		}
	}
	return n
}

func exactlyOne(set ...bool) error {
	if countSet(set...) != 1 {
		return errExactlyOne
	}
	return nil
}

// Range bounds for the between operators.
type Range struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

type IntegerConstraint struct {
	Equals             *int64  `json:"equals,omitempty"`
	NotEquals          *int64  `json:"not_equals,omitempty"`
	GreaterThan        *int64  `json:"greater_than,omitempty"`
	GreaterThanOrEqual *int64  `json:"greater_than_or_equal,omitempty"`
	LessThan           *int64  `json:"less_than,omitempty"`
	LessThanOrEqual    *int64  `json:"less_than_or_equal,omitempty"`
	InclusiveBetween   *Range  `json:"inclusive_between,omitempty"`
	ExclusiveBetween   *Range  `json:"exclusive_between,omitempty"`
	In                 []int64 `json:"in,omitempty"`
	NotIn              []int64 `json:"not_in,omitempty"`
}

func (c *IntegerConstraint) Validate() error {
	if err := exactlyOne(c.Equals != nil, c.NotEquals != nil, c.GreaterThan != nil, c.GreaterThanOrEqual != nil, c.LessThan != nil, c.LessThanOrEqual != nil, c.InclusiveBetween != nil, c.ExclusiveBetween != nil, len(c.In) > 0, len(c.NotIn) > 0); err != nil {
		return err
	}
	for _, r := range []*Range{c.InclusiveBetween, c.ExclusiveBetween} {
		if r != nil && r.Lower > r.Upper {
			return fmt.Errorf("range lower bound %d is above upper bound %d", r.Lower, r.Upper)
		}
	}
	return nil
}

func (c *IntegerConstraint) Matches(v int64) bool {
	switch {
	case c.Equals != nil:
		return v == *c.Equals
	case c.NotEquals != nil:
		return v != *c.NotEquals
	case c.GreaterThan != nil:
		return v > *c.GreaterThan
	case c.GreaterThanOrEqual != nil:
		return v >= *c.GreaterThanOrEqual
	case c.LessThan != nil:
		return v < *c.LessThan
	case c.LessThanOrEqual != nil:
		return v <= *c.LessThanOrEqual
	case c.InclusiveBetween != nil:
		return c.InclusiveBetween.Lower <= v && v <= c.InclusiveBetween.Upper
	case c.ExclusiveBetween != nil:
		return c.ExclusiveBetween.Lower < v && v < c.ExclusiveBetween.Upper
	case len(c.In) > 0:
		return slices.Contains(c.In, v)
	case len(c.NotIn) > 0:
		return !slices.Contains(c.NotIn, v)
	}
	return false
}

type BoolConstraint struct {
	Equals    *bool `json:"equals,omitempty"`
	NotEquals *bool `json:"not_equals,omitempty"`
}

func (c *BoolConstraint) Validate() error {
	return exactlyOne(c.Equals != nil, c.NotEquals != nil)
}

func (c *BoolConstraint) Matches(v bool) bool {
	if c.Equals != nil {
		return v == *c.Equals
	}
	if c.NotEquals != nil {
		return v != *c.NotEquals
	}
	return false
}

// TimeConstraint compares a timestamp against fixed instants, or against the age of the timestamp at evaluation time.
type TimeConstraint struct {
	Before    *time.Time `json:"before,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	OlderThan *Duration  `json:"older_than,omitempty"`
	NewerThan *Duration  `json:"newer_than,omitempty"`
}

func (c *TimeConstraint) Validate() error {
	return exactlyOne(c.Before != nil, c.After != nil, c.OlderThan != nil, c.NewerThan != nil)
}

func (c *TimeConstraint) Matches(v, now time.Time) bool {
	switch {
	case c.Before != nil:
		return v.Before(*c.Before)
	case c.After != nil:
		return v.After(*c.After)
	case c.OlderThan != nil:
		return now.Sub(v) > c.OlderThan.Std()
	case c.NewerThan != nil:
		return now.Sub(v) < c.NewerThan.Std()
	}
	return false
}

// IDListConstraint applies to lists of snowflakes, such as the roles of a member.
type IDListConstraint struct {
	Includes       *event.Snowflake  `json:"includes,omitempty"`
	DoesNotInclude *event.Snowflake  `json:"does_not_include,omitempty"`
	IncludesAny    []event.Snowflake `json:"includes_any,omitempty"`
	IsEmpty        *bool             `json:"is_empty,omitempty"`
}

func (c *IDListConstraint) Validate() error {
	return exactlyOne(c.Includes != nil, c.DoesNotInclude != nil, len(c.IncludesAny) > 0, c.IsEmpty != nil)
}

func (c *IDListConstraint) Matches(ids []event.Snowflake) bool {
	switch {
	case c.Includes != nil:
		return slices.Contains(ids, *c.Includes)
	case c.DoesNotInclude != nil:
		return !slices.Contains(ids, *c.DoesNotInclude)
	case len(c.IncludesAny) > 0:
		for _, id := range c.IncludesAny {
			if slices.Contains(ids, id) {
				return true
			}
		}
		return false
	case c.IsEmpty != nil:
		return (len(ids) == 0) == *c.IsEmpty
	}
	return false
}

// StringConstraint compares text. Comparisons are case-sensitive, except word list matching, which runs over normalized text.
type StringConstraint struct {
	Equals            *string            `json:"equals,omitempty"`
	NotEquals         *string            `json:"not_equals,omitempty"`
	Contains          *string            `json:"contains,omitempty"`
	ContainsAll       []string           `json:"contains_all,omitempty"`
	ContainsAny       []string           `json:"contains_any,omitempty"`
	DoesNotContain    *string            `json:"does_not_contain,omitempty"`
	DoesNotContainAny []string           `json:"does_not_contain_any,omitempty"`
	In                []string           `json:"in,omitempty"`
	NotIn             []string           `json:"not_in,omitempty"`
	StartsWith        *string            `json:"starts_with,omitempty"`
	DoesNotStartWith  *string            `json:"does_not_start_with,omitempty"`
	EndsWith          *string            `json:"ends_with,omitempty"`
	DoesNotEndWith    *string            `json:"does_not_end_with,omitempty"`
	// in user-perceived characters (grapheme clusters)
	Length            *IntegerConstraint `json:"length,omitempty"`
	IsUppercase       *bool              `json:"is_uppercase,omitempty"`
	IsLowercase       *bool              `json:"is_lowercase,omitempty"`

	// names of word lists, resolved against the guild's lists and then the global lists
	MatchesWordList      *string `json:"matches_word_list,omitempty"`
	DoesNotMatchWordList *string `json:"does_not_match_word_list,omitempty"`
}

func (c *StringConstraint) Validate() error {
	err := exactlyOne(
		c.Equals != nil, c.NotEquals != nil,
		c.Contains != nil, len(c.ContainsAll) > 0, len(c.ContainsAny) > 0,
		c.DoesNotContain != nil, len(c.DoesNotContainAny) > 0,
		len(c.In) > 0, len(c.NotIn) > 0,
		c.StartsWith != nil, c.DoesNotStartWith != nil,
		c.EndsWith != nil, c.DoesNotEndWith != nil,
		c.Length != nil, c.IsUppercase != nil, c.IsLowercase != nil,
		c.MatchesWordList != nil, c.DoesNotMatchWordList != nil,
	)
	if err != nil {
		return err
	}
	if c.Length != nil {
		if err := c.Length.Validate(); err != nil {
			return fmt.Errorf("length: %w", err)
		}
	}
	for _, name := range []*string{c.MatchesWordList, c.DoesNotMatchWordList} {
		if name != nil && *name == "" {
			return errors.New("word list name must not be empty")
		}
	}
	return nil
}

// WordList returns the referenced list name, and whether a match should be negated. ok is false for constraints which don't use a word list.
func (c *StringConstraint) WordList() (name string, negate bool, ok bool) {
	if c.MatchesWordList != nil {
		return *c.MatchesWordList, false, true
	}
	if c.DoesNotMatchWordList != nil {
		return *c.DoesNotMatchWordList, true, true
	}
	return "", false, false
}

func isCase(s string, fold func(rune) rune) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if fold(r) != r {
				return false
			}
		}
	}
	return hasLetter
}

// Matches evaluates every operator except word list matching, which needs a word list store and is handled by the engine.
func (c *StringConstraint) Matches(v string) bool {
	switch {
	case c.Equals != nil:
		return v == *c.Equals
	case c.NotEquals != nil:
		return v != *c.NotEquals
	case c.Contains != nil:
		return strings.Contains(v, *c.Contains)
	case len(c.ContainsAll) > 0:
		for _, s := range c.ContainsAll {
			if !strings.Contains(v, s) {
				return false
			}
		}
		return true
	case len(c.ContainsAny) > 0:
		for _, s := range c.ContainsAny {
			if strings.Contains(v, s) {
				return true
			}
		}
		return false
	case c.DoesNotContain != nil:
		return !strings.Contains(v, *c.DoesNotContain)
	case len(c.DoesNotContainAny) > 0:
		for _, s := range c.DoesNotContainAny {
			if strings.Contains(v, s) {
				return false
			}
		}
		return true
	case len(c.In) > 0:
		return slices.Contains(c.In, v)
	case len(c.NotIn) > 0:
		return !slices.Contains(c.NotIn, v)
	case c.StartsWith != nil:
		return strings.HasPrefix(v, *c.StartsWith)
	case c.DoesNotStartWith != nil:
		return !strings.HasPrefix(v, *c.DoesNotStartWith)
	case c.EndsWith != nil:
		return strings.HasSuffix(v, *c.EndsWith)
	case c.DoesNotEndWith != nil:
		return !strings.HasSuffix(v, *c.DoesNotEndWith)
	case c.Length != nil:
		return c.Length.Matches(int64(uniseg.GraphemeClusterCount(v)))
	case c.IsUppercase != nil:
		return isCase(v, unicode.ToUpper) == *c.IsUppercase
	case c.IsLowercase != nil:
		return isCase(v, unicode.ToLower) == *c.IsLowercase
	}
	return false
}
