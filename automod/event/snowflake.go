package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/mo"
)

// Discord epoch (2015-01-01T00:00:00Z), in milliseconds
const discordEpochMillis = 1420070400000

// Snowflake is a 64-bit Discord identifier (guild, channel, user, message, role).
//
// On the wire snowflakes are usually JSON strings. Both string and number forms are accepted when decoding, and they are always encoded as strings.
type Snowflake uint64

func ParseSnowflake(raw string) (Snowflake, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", raw, err)
	}
	return Snowflake(v), nil
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Creation time embedded in the identifier.
func (s Snowflake) Time() time.Time {
	return time.UnixMilli(int64(uint64(s)>>22) + discordEpochMillis).UTC()
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		v, err := ParseSnowflake(raw)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("invalid snowflake: %w", err)
	}
	*s = Snowflake(v)
	return nil
}

// optionalID converts the string identifiers used by discordgo types. Empty or malformed values are absent.
func optionalID(raw string) mo.Option[Snowflake] {
	if raw == "" {
		return mo.None[Snowflake]()
	}
	v, err := ParseSnowflake(raw)
	if err != nil {
		return mo.None[Snowflake]()
	}
	return mo.Some(v)
}
