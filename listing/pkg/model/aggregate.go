package model

// ComputeAggregate derives the aggregate of a subject from its reviews.
// Only approved reviews count. The average is rounded half away from
// zero to two decimals.
func ComputeAggregate(reviews []Review) Aggregate {
	var sum, n int64
	for _, r := range reviews {
		if !r.IsApproved {
			continue
		}
		sum += int64(r.Rating)
		n++
	}
	if n == 0 {
		return Aggregate{}
	}
	// Ratings are positive, so floor((200*sum + n) / 2n) is the
	// half-up rounding of 100*sum/n without touching floats.
	cents := (200*sum + n) / (2 * n)
	avg := float64(cents) / 100
	return Aggregate{AverageRating: &avg, ReviewCount: int(n)}
}
