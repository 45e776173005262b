package ids

import (
	"testing"

	"perp-indexer/internal/domain"
)

func TestClaimAction_Deterministic(t *testing.T) {
	id1 := ClaimAction("0xabc", "0xacc", domain.ClaimEventSettleFundingFeeCreated)
	id2 := ClaimAction("0xabc", "0xacc", domain.ClaimEventSettleFundingFeeCreated)

	if id1 != id2 {
		t.Errorf("ClaimAction not deterministic: %s != %s", id1, id2)
	}
	if id1 != "0xabc:0xacc:SettleFundingFeeCreated" {
		t.Errorf("unexpected id: %s", id1)
	}
}

func TestClaimAction_DifferentEventNames(t *testing.T) {
	created := ClaimAction("0xabc", "0xacc", domain.ClaimEventSettleFundingFeeCreated)
	executed := ClaimAction("0xabc", "0xacc", domain.ClaimEventSettleFundingFeeExecuted)

	if created == executed {
		t.Error("different event names should produce different ids")
	}
}

func TestCandle_Format(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		res    domain.Resolution
		bucket int64
		want   string
	}{
		{"1m", "0xtoken", domain.Resolution1m, 60, "0xtoken:1m:60"},
		{"1d zero", "0xtoken", domain.Resolution1d, 0, "0xtoken:1d:0"},
		{"4h", "0xother", domain.Resolution4h, 1700006400, "0xother:4h:1700006400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Candle(tt.token, tt.res, tt.bucket); got != tt.want {
				t.Errorf("Candle() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFundingFeeInfo_Format(t *testing.T) {
	if got := FundingFeeInfo("0xtx", "0xacc"); got != "0xtx:0xacc" {
		t.Errorf("FundingFeeInfo() = %s", got)
	}
}

func TestEvent_NormalizesHash(t *testing.T) {
	if got := Event("0xABC", 7); got != "0xabc:7" {
		t.Errorf("Event() = %s", got)
	}
	if Transaction("0xABC") != "0xabc" {
		t.Error("Transaction should lower-case the hash")
	}
	if ClaimRef("0xDEAD") != Order("0xdead") {
		t.Error("ClaimRef and Order ids must address the same order key")
	}
}
