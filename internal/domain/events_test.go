package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupStatusEvent_NeverCarriesPIN(t *testing.T) {
	pin := "4821"
	o := Order{
		ID:            uuid.New(),
		OverallStatus: OverallShipped,
		DealerGroups:  []DealerGroup{{DealerID: "d1", Status: StatusOutForDelivery, DeliveryPIN: &pin}},
		UpdatedAt:     t0,
	}

	ev := GroupStatusEvent(o, "d1", StatusShipped, "d1")

	assert.Equal(t, EventGroupStatusChanged, ev.Type)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), pin)
	assert.Equal(t, StatusOutForDelivery, ev.Payload["current_status"])
}

func TestGroupStatusEvent_Delivered(t *testing.T) {
	o := Order{ID: uuid.New(), DealerGroups: []DealerGroup{{DealerID: "d1", Status: StatusDelivered}}}

	ev := GroupStatusEvent(o, "d1", StatusOutForDelivery, "d1")

	assert.Equal(t, EventGroupDelivered, ev.Type)
}

func TestOrderJSON_HidesPIN(t *testing.T) {
	pin := "4821"
	o := Order{DealerGroups: []DealerGroup{{DealerID: "d1", Status: StatusOutForDelivery, DeliveryPIN: &pin}}}

	raw, err := json.Marshal(o)

	require.NoError(t, err)
	assert.NotContains(t, string(raw), pin)
}
