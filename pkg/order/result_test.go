package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMessage(t *testing.T) {
	cases := map[string]string{
		"Exchange error: Order must have minimum value of $10. asset=10142": "Order must have minimum value of $10",
		"Failed to place order: Insufficient spot balance asset=10142":      "Insufficient spot balance",
		"Failed to cancel order: Cancel failed: Order was never placed":     "Order was never placed",
		"  Price must be divisible by tick size.  ":                         "Price must be divisible by tick size",
		"Exchange error:":                        "Order rejected",
		"":                                       "Order rejected",
		"Network timeout - please try again":     "Network timeout - please try again",
		"Bad price   ASSET=7 for   this request": "Bad price for this request",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanMessage(in), "input %q", in)
	}
}

func TestSubmitResultErr(t *testing.T) {
	oid := uint64(130243366999)
	filled, avg := "0.00009", "118225"
	ok := SubmitResult{Success: true, Message: "Buy order placed successfully", OrderID: &oid, FilledSize: &filled, AvgPrice: &avg}
	assert.NoError(t, ok.Err())
	assert.True(t, ok.Filled())

	bad := SubmitResult{Message: "Exchange error: Insufficient balance asset=10142"}
	err := bad.Err()
	require.Error(t, err)
	assert.False(t, bad.Filled())

	var ef *ExternalFailure
	require.True(t, errors.As(err, &ef))
	assert.Equal(t, "Insufficient balance", ef.Error())
	assert.Equal(t, "Exchange error: Insufficient balance asset=10142", ef.Raw)
}
