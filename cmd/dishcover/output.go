package main

import (
	"fmt"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// priceLabel renders a 1..4 price level as dollar signs.
func priceLabel(level int) string {
	if level <= 0 {
		return "-"
	}
	return strings.Repeat("$", level)
}

// restaurantLine formats one restaurant for terminal output.
func restaurantLine(name, address string, rating float64, price int) string {
	stars := "-"
	if rating > 0 {
		stars = fmt.Sprintf("%.1f★", rating)
	}
	return fmt.Sprintf("%s  %s  %s  %s", colorize(colorBold, name), stars, priceLabel(price), address)
}
