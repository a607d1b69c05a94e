package gallery

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// ComicInfo is the metadata document embedded at the front of each
// archive. Element names follow the ComicInfo schema (PascalCase);
// absent optional fields are omitted entirely.
type ComicInfo struct {
	XMLName         xml.Name   `xml:"ComicInfo"`
	Title           *string    `xml:"Title,omitempty"`
	Series          *string    `xml:"Series,omitempty"`
	Number          *string    `xml:"Number,omitempty"`
	Count           *string    `xml:"Count,omitempty"`
	Volume          *string    `xml:"Volume,omitempty"`
	Summary         *string    `xml:"Summary,omitempty"`
	Notes           *string    `xml:"Notes,omitempty"`
	Year            *int32     `xml:"Year,omitempty"`
	Month           *int32     `xml:"Month,omitempty"`
	Day             *int32     `xml:"Day,omitempty"`
	Writer          *string    `xml:"Writer,omitempty"`
	Penciller       *string    `xml:"Penciller,omitempty"`
	Inker           *string    `xml:"Inker,omitempty"`
	Colorist        *string    `xml:"Colorist,omitempty"`
	Letterer        *string    `xml:"Letterer,omitempty"`
	CoverArtist     *string    `xml:"CoverArtist,omitempty"`
	Editor          *string    `xml:"Editor,omitempty"`
	Publisher       *string    `xml:"Publisher,omitempty"`
	Imprint         *string    `xml:"Imprint,omitempty"`
	Genre           *string    `xml:"Genre,omitempty"`
	Tags            *string    `xml:"Tags,omitempty"`
	Web             *string    `xml:"Web,omitempty"`
	PageCount       int        `xml:"PageCount"`
	Language        *string    `xml:"LanguageISO,omitempty"`
	Format          *string    `xml:"Format,omitempty"`
	BlackAndWhite   *bool      `xml:"BlackAndWhite,omitempty"`
	Characters      *string    `xml:"Characters,omitempty"`
	Teams           *string    `xml:"Teams,omitempty"`
	Locations       *string    `xml:"Locations,omitempty"`
	ScanInformation *string    `xml:"ScanInformation,omitempty"`
	StoryArc        *string    `xml:"StoryArc,omitempty"`
	SeriesGroup     *string    `xml:"SeriesGroup,omitempty"`
	AgeRating       *string    `xml:"AgeRating,omitempty"`
	CommunityRating *string    `xml:"CommunityRating,omitempty"`
	CriticalRating  *string    `xml:"CriticalRating,omitempty"`
	Pages           []ComicPage `xml:"Pages>Page"`
}

type ComicPage struct {
	Image int    `xml:"Image,attr"`
	Type  string `xml:"Type,attr"`
}

const (
	PageTypeFrontCover = "FrontCover"
	PageTypeStory      = "Story"
	PageTypeBackCover  = "BackCover"
)

// NewComicInfo builds the metadata document for a doc being archived
// with the given number of pages. Page 0 is the front cover, the last
// page the back cover; a single-page archive is front cover only.
func NewComicInfo(doc *Doc, pageCount int) *ComicInfo {
	pages := make([]ComicPage, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		pageType := PageTypeStory
		switch {
		case i == 0:
			pageType = PageTypeFrontCover
		case i == pageCount-1:
			pageType = PageTypeBackCover
		}

		pages = append(pages, ComicPage{Image: i, Type: pageType})
	}

	title := doc.Title
	if title == nil {
		title = doc.PageTitle
	}

	return &ComicInfo{
		Title:           title,
		Series:          doc.Series,
		Number:          doc.Number,
		Count:           doc.Count,
		Volume:          doc.Volume,
		Summary:         doc.Summary,
		Notes:           doc.Notes,
		Year:            doc.Year,
		Month:           doc.Month,
		Day:             doc.Day,
		Writer:          doc.Writer,
		Penciller:       doc.Penciller,
		Inker:           doc.Inker,
		Colorist:        doc.Colorist,
		Letterer:        doc.Letterer,
		CoverArtist:     doc.CoverArtist,
		Editor:          doc.Editor,
		Publisher:       doc.Publisher,
		Imprint:         doc.Imprint,
		Genre:           doc.Genre,
		Tags:            doc.Tags,
		Web:             doc.Web,
		PageCount:       pageCount,
		Language:        doc.Language,
		Format:          doc.Format,
		BlackAndWhite:   doc.BlackAndWhite,
		Characters:      doc.Characters,
		Teams:           doc.Teams,
		Locations:       doc.Locations,
		ScanInformation: doc.ScanInformation,
		StoryArc:        doc.StoryArc,
		SeriesGroup:     doc.SeriesGroup,
		AgeRating:       doc.AgeRating,
		CommunityRating: doc.CommunityRating,
		CriticalRating:  doc.CriticalRating,
		Pages:           pages,
	}
}

// Marshal renders the document with the XML declaration comic readers
// expect at the head of ComicInfo.xml.
func (info *ComicInfo) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ComicInfo: %w", err)
	}

	return append([]byte("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"), body...), nil
}

// ArchiveFilename derives the archive name for a doc:
// "[writer]title.cbz" when both are present, else the page title, else
// the last segment of the source URL.
func ArchiveFilename(doc *Doc) string {
	if doc.Writer != nil && doc.Title != nil {
		return fmt.Sprintf("[%s]%s.cbz", *doc.Writer, *doc.Title)
	}

	if doc.Title == nil && doc.PageTitle != nil && *doc.PageTitle != "" {
		return *doc.PageTitle + ".cbz"
	}

	return LastPathSegment(doc.URL) + ".cbz"
}

// LastPathSegment returns the portion of a URL after the final slash,
// with any query string or fragment stripped.
func LastPathSegment(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimRight(url, "/")

	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}

	return url
}

// PageFilename renders the on-disk name for the page with the given
// sequence number out of total pages. Names are zero padded to at
// least three digits (wider when the page count demands it) so that
// lexicographic order matches page order.
func PageFilename(seq int32, total int, url string) string {
	return fmt.Sprintf("%0*d.%s", padWidth(total), seq, imageExtension(url))
}

func padWidth(total int) int {
	width := 1
	for power := 10; power < total; power *= 10 {
		width++
	}

	width++
	if width < 3 {
		return 3
	}

	return width
}

func imageExtension(url string) string {
	segment := LastPathSegment(url)
	if i := strings.LastIndex(segment, "."); i >= 0 && i < len(segment)-1 {
		return segment[i+1:]
	}

	return "jpg"
}
