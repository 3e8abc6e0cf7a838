package store

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements. chunkSize <= 0 yields a single window.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty and repeated values, keeping first occurrences.
// Values listed in skip are dropped as well.
func DedupeStrings(in []string, skip ...string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in)+len(skip))
	for _, s := range skip {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
