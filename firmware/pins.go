//go:build tinygo

package main

import "machine"

const (
	// Re-initializations before the MCU is reset
	MAX_REINIT = 3

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// machine.ADC.Get scales every resolution to 16 bits
	ADC_SHIFT = 16 - ADC_RESOLUTION

	// Indicator pin
	PIN_LED = machine.LED

	// Moisture probe pin
	PIN_ADC = machine.A1

	// Serial configuration
	// Format "unix_micros,reading\n", at most ~22 bytes per line at 2 lines/sec.
	// Matches sensor.DefaultBaudRate on the host.
	UART_BAUD_RATE = 115200
)
