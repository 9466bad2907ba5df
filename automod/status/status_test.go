package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var all = []Status{Met, NotMet, Unknown}

func TestTruthTables(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Met, And(Met, Met))
	assert.Equal(NotMet, And(Met, NotMet))
	assert.Equal(NotMet, And(Unknown, NotMet))
	assert.Equal(Unknown, And(Met, Unknown))

	assert.Equal(Met, Or(NotMet, Met))
	assert.Equal(Met, Or(Unknown, Met))
	assert.Equal(Unknown, Or(NotMet, Unknown))
	assert.Equal(NotMet, Or(NotMet, NotMet))

	assert.Equal(NotMet, Not(Met))
	assert.Equal(Met, Not(NotMet))
	assert.Equal(Unknown, Not(Unknown))

	// identities of the empty combinators
	assert.Equal(Met, And())
	assert.Equal(NotMet, Or())
}

func TestAlgebraProperties(t *testing.T) {
	assert := assert.New(t)

	for _, a := range all {
		assert.Equal(a, Not(Not(a)))
		assert.Equal(a, And(a, Met), "Met is the identity of AND")
		assert.Equal(NotMet, And(a, NotMet), "NotMet absorbs AND")
		assert.Equal(a, Or(a, NotMet), "NotMet is the identity of OR")
		assert.Equal(Met, Or(a, Met), "Met absorbs OR")

		for _, b := range all {
			assert.Equal(And(a, b), And(b, a))
			assert.Equal(Or(a, b), Or(b, a))
			assert.Equal(a.And(b), And(a, b))
			assert.Equal(a.Or(b), Or(a, b))
			// De Morgan holds in this logic
			assert.Equal(Not(And(a, b)), Or(Not(a), Not(b)))

			for _, c := range all {
				assert.Equal(And(And(a, b), c), And(a, And(b, c)))
				assert.Equal(Or(Or(a, b), c), Or(a, Or(b, c)))
				assert.Equal(And(a, b, c), And(And(a, b), c))
			}
		}
	}
}

func TestAtLeast(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Met, AtLeast(0))
	assert.Equal(Met, AtLeast(2, Met, NotMet, Met))
	assert.Equal(Unknown, AtLeast(2, Met, Unknown, NotMet))
	assert.Equal(NotMet, AtLeast(2, Met, NotMet, NotMet))
	assert.Equal(NotMet, AtLeast(3, Met, Unknown))

	// AtLeast(1) behaves like OR, and AtLeast(len) like AND
	for _, a := range all {
		for _, b := range all {
			assert.Equal(Or(a, b), AtLeast(1, a, b))
			assert.Equal(And(a, b), AtLeast(2, a, b))
		}
	}
}

func TestString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("met", Met.String())
	assert.Equal("not_met", NotMet.String())
	assert.Equal("unknown", Unknown.String())
	assert.Equal(Met, FromBool(true))
	assert.Equal(NotMet, FromBool(false))
}
