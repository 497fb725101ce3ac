package gateway

import (
	"testing"

	"github.com/shopspring/decimal"

	"carbid/pkg/model"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		action  string
		wantErr bool
	}{
		{
			name:   "join auction frame",
			data:   `{"action":"joinAuction","payload":{"auctionId":7}}`,
			action: ActionJoinAuction,
		},
		{
			name:   "place bid frame",
			data:   `{"action":"placeBid","payload":{"auctionId":7,"userId":2,"bidAmount":120}}`,
			action: ActionPlaceBid,
		},
		{
			name:   "unknown action still decodes",
			data:   `{"action":"subscribe","payload":{}}`,
			action: "subscribe",
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: true,
		},
		{
			name:    "missing action",
			data:    `{"payload":{"auctionId":7}}`,
			wantErr: true,
		},
		{
			name:    "empty frame",
			data:    `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeEnvelope(%q) succeeded, want error", tt.data)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEnvelope(%q): %v", tt.data, err)
			}
			if env.Action != tt.action {
				t.Fatalf("action = %q, want %q", env.Action, tt.action)
			}
		})
	}
}

func TestDecodePayload_PlaceBid(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"action":"placeBid","payload":{"auctionId":7,"userId":2,"bidAmount":120.50}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}

	var req model.PlaceBidRequest
	if err := env.DecodePayload(&req); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if req.AuctionID != 7 || req.UserID != 2 {
		t.Fatalf("decoded request = %+v", req)
	}
	if !req.BidAmount.Equal(decimal.NewFromFloat(120.50)) {
		t.Fatalf("bid amount = %s, want 120.5", req.BidAmount)
	}
}

func TestDecodePayload_Missing(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"action":"joinAuction"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}

	var req model.JoinAuctionRequest
	if err := env.DecodePayload(&req); err == nil {
		t.Fatal("DecodePayload succeeded with no payload")
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"action":"placeBid","payload":{"auctionId":"seven"}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}

	var req model.PlaceBidRequest
	if err := env.DecodePayload(&req); err == nil {
		t.Fatal("DecodePayload succeeded with a mistyped field")
	}
}
