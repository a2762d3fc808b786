package extract

// extractText returns the whole content as a single unit.
func extractText(data []byte) []Unit {
	return []Unit{{Text: string(data)}}
}
