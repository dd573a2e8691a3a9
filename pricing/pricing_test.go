package pricing

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForSecondsExamples(t *testing.T) {
	q := ForSeconds(45)
	assert.Equal(t, 45, q.BilledSeconds)
	assert.Equal(t, "1498500", q.Atomic)
	assert.InDelta(t, 149.85, q.Cents, 1e-9)
}

func TestForSecondsClampsToMinimum(t *testing.T) {
	for _, requested := range []int{-10, 0, 1, 2, 4, 5} {
		q := ForSeconds(requested)
		assert.Equal(t, MinBillableSeconds, q.BilledSeconds, "requested=%d", requested)
		assert.Equal(t, ForSeconds(MinBillableSeconds).Atomic, q.Atomic, "requested=%d", requested)
	}
}

func TestForSecondsDeterminism(t *testing.T) {
	for s := -3; s <= 130; s++ {
		q := ForSeconds(s)

		billed := s
		if billed < MinBillableSeconds {
			billed = MinBillableSeconds
		}
		assert.Equal(t, billed, q.BilledSeconds, "seconds=%d", s)
		assert.Equal(t, strconv.Itoa(billed*RatePerSecondAtomic), q.Atomic, "seconds=%d", s)
	}
}

func TestForSecondsNeverZero(t *testing.T) {
	q := ForSeconds(0)
	assert.NotEqual(t, "0", q.Atomic)
	assert.Equal(t, fmt.Sprintf("%d", MinBillableSeconds*RatePerSecondAtomic), q.Atomic)
}
