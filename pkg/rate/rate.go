package rate

const (
	// LEDBaseRate is the toggle rate at zero moisture and the initial toggle timer rate (Hz).
	LEDBaseRate uint32 = 2
	// ADCRate is the fixed sampling rate (Hz).
	ADCRate uint32 = 2
	// MoistureScalingFactor divides the raw reading before it is added to the base rate.
	MoistureScalingFactor uint32 = 200
	// DefaultRate is the shared rate before the first sample is published (Hz).
	DefaultRate uint32 = 20
	// MaxReading is the largest 12-bit ADC reading.
	MaxReading uint16 = 4095
)

// Compute converts a raw moisture reading into a toggle rate in Hz.
func Compute(reading uint16) uint32 {
	return LEDBaseRate + uint32(reading)/MoistureScalingFactor
}
