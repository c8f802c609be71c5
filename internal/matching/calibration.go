package matching

// Calibration constants for the scorer and the search fallback gate. They are
// empirically tuned; changing any of them changes match outcomes, so the
// boundary tests in scorer_test.go pin each one.
const (
	// Field similarity levels.
	SimExact     = 100
	SimContained = 80

	// Missing-title blends.
	BothTitlesMissingArtistWeight = 0.60
	BothTitlesMissingAlbumWeight  = 0.40
	OneTitleMissingArtistWeight   = 0.20
	OneTitleMissingAlbumWeight    = 0.10

	// Poor-title cap.
	PoorTitleThreshold    = 70
	PoorTitleCap          = 15
	PoorTitleArtistWeight = 0.10
	PoorTitleTitleWeight  = 0.05

	// Missing-artist handling.
	NoArtistTitleWeight      = 0.85
	NoArtistAlbumWeight      = 0.10
	NoArtistCap              = 95
	OneArtistStrongThreshold = 95
	OneArtistTitleWeight     = 0.70
	OneArtistAlbumWeight     = 0.20

	// Perfect artist+title match.
	PerfectAlbumThreshold = 80
	PerfectOtherAlbum     = 98

	// Cover-song heuristic.
	CoverTitleThreshold = 95
	CoverArtistCeiling  = 62
	CoverAlbumThreshold = 60
	CoverBase           = 25
	CoverArtistWeight   = 0.10
	CoverAlbumWeight    = 0.05
	CoverCap            = 45

	// Default blend.
	DefaultArtistWeight = 0.40
	DefaultTitleWeight  = 0.50
	DefaultAlbumWeight  = 0.10

	// PreciseAcceptThreshold is the best similarity a precise query must reach
	// for its results to be kept instead of falling back to a relaxed query.
	PreciseAcceptThreshold = 50
)
