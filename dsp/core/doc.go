// Package core provides shared numeric and buffer helpers used by the
// virtual-analog processing packages: range clamping, finite checks,
// denormal flushing, dB conversions, and allocation-aware slice helpers.
package core
