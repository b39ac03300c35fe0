//go:build simdebug

package entities

const strictMath = true
