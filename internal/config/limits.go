package config

import "time"

const (
	// MaxTitleLength is the maximum length for post titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxTitleLength = 255

	// MinContentLength is the shortest body a post may be submitted with.
	MinContentLength = 50

	// MaxAIScore is the exclusive upper bound on the AI-likelihood score
	// for submission. A post scoring 60 or more reads as machine-written.
	MaxAIScore = 60

	// MinTOVScore is the minimum tone-of-voice score for submission.
	// A score of 0 means "not scored yet" and is accepted.
	MinTOVScore = 70

	// MaxCommentLength bounds comment and denial-reason text.
	MaxCommentLength = 2000

	// MissedAfter is how long past its slot a scheduled post may stay
	// unpublished before the sweeper reclassifies it as missed.
	MissedAfter = time.Hour

	// RecommendationHorizonDays bounds how far ahead the advisor looks when
	// generating suggested slots.
	RecommendationHorizonDays = 14
)
