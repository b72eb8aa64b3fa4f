package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxAccel_NormalCase(t *testing.T) {
	assert.InDelta(t, 1.0, TxAccel(100, 1200), 1e-9)
}

func TestTxAccel_HardFloor(t *testing.T) {
	assert.Equal(t, 0.0, TxAccel(99, 5000))
}

func TestTxAccel_OneHourFloor(t *testing.T) {
	assert.Equal(t, 0.0, TxAccel(500, 1199))
}

func TestVolMomentum_BelowFloors(t *testing.T) {
	assert.Equal(t, 0.0, VolMomentum(499, 10000))
	assert.Equal(t, 0.0, VolMomentum(1000, 1999))
}

func TestVolMomentum_NormalCase(t *testing.T) {
	// vol_5m=1200, vol_1h=12000 -> 1200 / (12000/12) = 1200/1000 = 1.2
	assert.InDelta(t, 1.2, VolMomentum(1200, 12000), 1e-9)
}

func TestTokenFreshness_Midpoint(t *testing.T) {
	assert.InDelta(t, 0.5, TokenFreshness(3, 6), 1e-9)
}

func TestTokenFreshness_AtThreshold(t *testing.T) {
	assert.Equal(t, 0.0, TokenFreshness(6, 6))
}

func TestTokenFreshness_BeyondThreshold(t *testing.T) {
	assert.Equal(t, 0.0, TokenFreshness(7, 6))
}

func TestTokenFreshness_BrandNew(t *testing.T) {
	assert.Equal(t, 1.0, TokenFreshness(0, 6))
	assert.Equal(t, 1.0, TokenFreshness(-1, 6))
}

func TestOrderflowImbalance_BuySkew(t *testing.T) {
	// 600+200 = 800 clears the 500 floor; (600-200)/800 = 0.5
	assert.InDelta(t, 0.5, OrderflowImbalance(600, 200), 1e-9)
}

func TestOrderflowImbalance_BalancedAboveFloor(t *testing.T) {
	assert.Equal(t, 0.0, OrderflowImbalance(300, 300))
}

func TestOrderflowImbalance_BelowFloor(t *testing.T) {
	assert.Equal(t, 0.0, OrderflowImbalance(100, 50))
}

func TestArbitrageTxAccel_BlendsSaturationAndAcceleration(t *testing.T) {
	// tx_5m=200 == optimal -> saturation=1.0; tx_accel(200,1200) = (200/5)/(1200/60) = 40/20 = 2.0
	v := ArbitrageTxAccel(200, 1200, 200, 0.5)
	assert.InDelta(t, 0.5*2.0+0.5*1.0, v, 1e-9)
}

func TestArbitrageTxAccel_ZeroOptimalDoesNotDivideByZero(t *testing.T) {
	v := ArbitrageTxAccel(200, 1200, 0, 0.5)
	assert.InDelta(t, 0.5*2.0+0.5*1.0, v, 1e-9)
}
