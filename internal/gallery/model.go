package gallery

import "time"

type DocStatus int16

// Doc lifecycle. A doc is created Unparsed from a bare URL and walks
// forward one stage per task: HtmlParse makes it Parsed, PicDownload
// makes it Downloaded, CbzArchive makes it Archived.
const (
	DocUnparsed DocStatus = iota
	DocParsed
	DocDownloaded
	DocArchived
)

type (
	// Doc is a source album page plus the full set of comic metadata a
	// user may curate against it. Everything except the URL is optional;
	// the metadata columns feed ComicInfo.xml during archival.
	Doc struct {
		ID              int32      `db:"id" json:"id"`
		Status          DocStatus  `db:"status" json:"status"`
		URL             string     `db:"url" json:"url"`
		PageTitle       *string    `db:"page_title" json:"pageTitle,omitempty"`
		PageDate        *time.Time `db:"page_date" json:"pageDate,omitempty"`
		Title           *string    `db:"title" json:"title,omitempty"`
		Series          *string    `db:"series" json:"series,omitempty"`
		Number          *string    `db:"number" json:"number,omitempty"`
		Count           *string    `db:"count" json:"count,omitempty"`
		Volume          *string    `db:"volume" json:"volume,omitempty"`
		Summary         *string    `db:"summary" json:"summary,omitempty"`
		Notes           *string    `db:"notes" json:"notes,omitempty"`
		Year            *int32     `db:"year" json:"year,omitempty"`
		Month           *int32     `db:"month" json:"month,omitempty"`
		Day             *int32     `db:"day" json:"day,omitempty"`
		Writer          *string    `db:"writer" json:"writer,omitempty"`
		Penciller       *string    `db:"penciller" json:"penciller,omitempty"`
		Inker           *string    `db:"inker" json:"inker,omitempty"`
		Colorist        *string    `db:"colorist" json:"colorist,omitempty"`
		Letterer        *string    `db:"letterer" json:"letterer,omitempty"`
		CoverArtist     *string    `db:"cover_artist" json:"coverArtist,omitempty"`
		Editor          *string    `db:"editor" json:"editor,omitempty"`
		Publisher       *string    `db:"publisher" json:"publisher,omitempty"`
		Imprint         *string    `db:"imprint" json:"imprint,omitempty"`
		Genre           *string    `db:"genre" json:"genre,omitempty"`
		Tags            *string    `db:"tags" json:"tags,omitempty"`
		Web             *string    `db:"web" json:"web,omitempty"`
		PageCount       *string    `db:"page_count" json:"pageCount,omitempty"`
		Language        *string    `db:"language" json:"language,omitempty"`
		Format          *string    `db:"format" json:"format,omitempty"`
		BlackAndWhite   *bool      `db:"black_and_white" json:"blackAndWhite,omitempty"`
		Characters      *string    `db:"characters" json:"characters,omitempty"`
		Teams           *string    `db:"teams" json:"teams,omitempty"`
		Locations       *string    `db:"locations" json:"locations,omitempty"`
		ScanInformation *string    `db:"scan_information" json:"scanInformation,omitempty"`
		StoryArc        *string    `db:"story_arc" json:"storyArc,omitempty"`
		SeriesGroup     *string    `db:"series_group" json:"seriesGroup,omitempty"`
		AgeRating       *string    `db:"age_rating" json:"ageRating,omitempty"`
		CommunityRating *string    `db:"community_rating" json:"communityRating,omitempty"`
		CriticalRating  *string    `db:"critical_rating" json:"criticalRating,omitempty"`
		CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
		UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	}

	// Pic is one image belonging to a doc, ordered by Seq within it.
	Pic struct {
		ID        int32     `db:"id" json:"id"`
		DocID     int32     `db:"doc_id" json:"docId"`
		URL       string    `db:"url" json:"url"`
		Seq       int32     `db:"seq" json:"seq"`
		Status    int16     `db:"status" json:"status"`
		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}

	// Cbz is a packaged archive on local disk, optionally linked back
	// to the doc it was built from. Path is the archive's filename
	// relative to the configured cbz directory.
	Cbz struct {
		ID        int32     `db:"id" json:"id"`
		DocID     *int32    `db:"doc_id" json:"docId,omitempty"`
		Path      string    `db:"path" json:"path"`
		CreatedAt time.Time `db:"created_at" json:"createdAt"`
		UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	}

	// AlbumManifest is what parsing a source album page yields: the
	// page's title, its publication timestamp (verbatim from the
	// source), and the image URLs in page order.
	AlbumManifest struct {
		Title     string
		Date      string
		ImageURLs []string
	}
)
