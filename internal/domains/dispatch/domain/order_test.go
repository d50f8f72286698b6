package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyCode(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   CodeKind
		value  string
		number int64
	}{
		{name: "uuid", raw: "  3f2c8a1e-0d4b-4c7a-9a57-0e7e3b6f9d21 ", kind: CodeIdentifier, value: "3f2c8a1e-0d4b-4c7a-9a57-0e7e3b6f9d21"},
		{name: "embedded uuid", raw: "https://payper.app/t/order_3f2c8a1e-0d4b-4c7a-9a57-0e7e3b6f9d21", kind: CodeIdentifier, value: "3f2c8a1e-0d4b-4c7a-9a57-0e7e3b6f9d21"},
		{name: "numeric", raw: "7842", kind: CodeNumeric, value: "7842", number: 7842},
		{name: "numeric overflow is opaque", raw: "99999999999999999999999", kind: CodeOpaque, value: "99999999999999999999999"},
		{name: "uuid without dashes is opaque", raw: "3f2c8a1e0d4b4c7a9a570e7e3b6f9d21", kind: CodeOpaque, value: "3f2c8a1e0d4b4c7a9a570e7e3b6f9d21"},
		{name: "opaque", raw: "PX-77A", kind: CodeOpaque, value: "PX-77A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ClassifyCode(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.kind, code.Kind)
			require.Equal(t, tt.value, code.Value)
			require.Equal(t, tt.number, code.Number)
		})
	}
}

func TestClassifyCode_Empty(t *testing.T) {
	_, err := ClassifyCode("   ")
	require.ErrorIs(t, err, ErrEmptyCode)

	_, err = ClassifyCode("order_")
	require.ErrorIs(t, err, ErrEmptyCode)
}

func TestNormalizeStation(t *testing.T) {
	require.Equal(t, AllStations, NormalizeStation(""))
	require.Equal(t, AllStations, NormalizeStation(" all "))
	require.Equal(t, Station("BARRA"), NormalizeStation(" BARRA "))
	require.False(t, AllStations.Filtering())
	require.True(t, Station("COCINA").Filtering())
}

func TestOrder_NeedsClaim(t *testing.T) {
	order := &Order{ID: "o-1", Status: StatusPaid}
	require.False(t, order.NeedsClaim(AllStations))
	require.True(t, order.NeedsClaim("BARRA"))

	order.DispatchStation = "BARRA"
	require.False(t, order.NeedsClaim("BARRA"))
	require.True(t, order.NeedsClaim("COCINA"))
}

func TestOrder_Claim(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	order := &Order{ID: "o-1", Status: StatusPaid}
	require.NoError(t, order.Claim("BARRA", now))
	require.Equal(t, Station("BARRA"), order.DispatchStation)
	require.Equal(t, StatusPreparing, order.Status)

	require.ErrorIs(t, order.Claim("COCINA", now), ErrStationAssigned)
	require.Equal(t, Station("BARRA"), order.DispatchStation)

	served := &Order{ID: "o-2", Status: StatusServed}
	require.ErrorIs(t, served.Claim("BARRA", now), ErrServed)

	cancelled := &Order{ID: "o-3", Status: StatusCancelled}
	require.ErrorIs(t, cancelled.Claim("BARRA", now), ErrClosed)

	require.ErrorIs(t, (&Order{ID: "o-4", Status: StatusPaid}).Claim(AllStations, now), ErrMissingStation)
}

func TestOrder_MarkServed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := &Order{ID: "o-1", Status: StatusReady, DispatchStation: "COCINA"}

	require.ErrorIs(t, order.MarkServed(" ", now), ErrMissingOperator)
	require.NoError(t, order.MarkServed("staff-9", now))
	require.Equal(t, StatusServed, order.Status)
	require.Equal(t, "staff-9", order.ServedBy)
	require.NotNil(t, order.ServedAt)

	require.ErrorIs(t, order.MarkServed("staff-9", now), ErrServed)
}

func TestStatusPredicates(t *testing.T) {
	require.True(t, StatusPending.AwaitingPayment())
	require.False(t, StatusPaid.AwaitingPayment())
	require.True(t, StatusServed.Paid())
	require.False(t, StatusPending.Paid())
	require.True(t, StatusRefunded.Closed())
	require.False(t, Status("shipped").Valid())
}

func TestOrder_CloneDoesNotShareItems(t *testing.T) {
	order := &Order{ID: "o-1", Status: StatusPaid, Items: []LineItem{{ProductID: "p-1", Quantity: 1}}}
	clone := order.Clone()
	clone.Items[0].Quantity = 5
	require.Equal(t, int32(1), order.Items[0].Quantity)
}
