package matching

// Score returns the 0–100 confidence that candidate is the same recording as
// local. It is pure and total. The rules are evaluated in order and the first
// one that applies decides the result:
//
//  1. a missing title on either side caps the score hard
//  2. a poor title match means a different song, whatever else agrees
//  3. missing artists lean on title and album
//  4. exact artist and title give 100, or 98 when the album differs
//  5. same title on a similar album by a different artist looks like a cover
//  6. otherwise a weighted blend of the three fields
func Score(local LocalRecord, candidate Metadata) int {
	artist := fieldSim(local.Artist, candidate.Artist)
	title := fieldSim(local.Title, candidate.Title)
	album := fieldSim(local.Album, candidate.Album)

	localNoTitle, candNoTitle := blank(local.Title), blank(candidate.Title)
	if localNoTitle || candNoTitle {
		if localNoTitle && candNoTitle {
			return round(float64(artist)*BothTitlesMissingArtistWeight + float64(album)*BothTitlesMissingAlbumWeight)
		}
		return round(float64(artist)*OneTitleMissingArtistWeight + float64(album)*OneTitleMissingAlbumWeight)
	}

	if title < PoorTitleThreshold {
		return min(PoorTitleCap, round(float64(artist)*PoorTitleArtistWeight+float64(title)*PoorTitleTitleWeight))
	}

	localNoArtist, candNoArtist := blank(local.Artist), blank(candidate.Artist)
	switch {
	case localNoArtist && candNoArtist:
		return min(NoArtistCap, round(float64(title)*NoArtistTitleWeight+float64(album)*NoArtistAlbumWeight))
	case localNoArtist != candNoArtist && title >= OneArtistStrongThreshold && album >= OneArtistStrongThreshold:
		return round(float64(title)*OneArtistTitleWeight + float64(album)*OneArtistAlbumWeight)
	}

	if artist == SimExact && title == SimExact {
		if selfTitled(local.Album, local.Title) || selfTitled(candidate.Album, candidate.Title) || album >= PerfectAlbumThreshold {
			return 100
		}
		return PerfectOtherAlbum
	}

	if title >= CoverTitleThreshold && artist < CoverArtistCeiling && album >= CoverAlbumThreshold {
		return min(CoverCap, round(CoverBase+float64(artist)*CoverArtistWeight+float64(album)*CoverAlbumWeight))
	}

	return round(float64(artist)*DefaultArtistWeight + float64(title)*DefaultTitleWeight + float64(album)*DefaultAlbumWeight)
}

// ScoreCandidate scores a catalog hit using its primary artist.
func ScoreCandidate(local LocalRecord, candidate CandidateRecord) int {
	return Score(local, candidate.Metadata())
}

// selfTitled reports whether a track shares its name with its album, the
// usual shape of singles.
func selfTitled(album, title string) bool {
	na := normalize(album)
	return na != "" && na == normalize(title)
}
