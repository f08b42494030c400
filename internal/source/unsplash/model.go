package unsplash

import (
	"fmt"

	"github.com/timmy/photogrid/internal/domain"
)

// Photo is one record of the /photos listing.
// Only ID, Width, Height, URLs.Thumb, URLs.Small and User.Name are required;
// everything else is carried through for display.
type Photo struct {
	ID                     string       `json:"id"`
	CreatedAt              string       `json:"created_at"`
	UpdatedAt              string       `json:"updated_at"`
	Width                  int          `json:"width"`
	Height                 int          `json:"height"`
	Color                  *string      `json:"color"`
	BlurHash               *string      `json:"blur_hash"`
	Likes                  int          `json:"likes"`
	LikedByUser            bool         `json:"liked_by_user"`
	Description            *string      `json:"description"`
	User                   *User        `json:"user"`
	CurrentUserCollections []Collection `json:"current_user_collections"`
	URLs                   *URLs        `json:"urls"`
	Links                  PhotoLinks   `json:"links"`
}

// User is the uploader of a photo.
type User struct {
	ID                string       `json:"id"`
	Username          string       `json:"username"`
	Name              *string      `json:"name"`
	PortfolioURL      *string      `json:"portfolio_url"`
	Bio               *string      `json:"bio"`
	Location          *string      `json:"location"`
	TotalLikes        int          `json:"total_likes"`
	TotalPhotos       int          `json:"total_photos"`
	TotalCollections  int          `json:"total_collections"`
	InstagramUsername *string      `json:"instagram_username"`
	TwitterUsername   *string      `json:"twitter_username"`
	ProfileImage      ProfileImage `json:"profile_image"`
	Links             UserLinks    `json:"links"`
}

// ProfileImage holds the avatar URLs of a user.
type ProfileImage struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// UserLinks holds the API and web links of a user.
type UserLinks struct {
	Self      string `json:"self"`
	HTML      string `json:"html"`
	Photos    string `json:"photos"`
	Likes     string `json:"likes"`
	Portfolio string `json:"portfolio"`
}

// Collection is a collection the photo belongs to for the current user.
type Collection struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	PublishedAt     *string `json:"published_at"`
	LastCollectedAt *string `json:"last_collected_at"`
	UpdatedAt       *string `json:"updated_at"`
	CoverPhoto      *Photo  `json:"cover_photo"`
	User            *User   `json:"user"`
}

// URLs holds the size variants of a photo.
type URLs struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

// PhotoLinks holds the links of a photo.
type PhotoLinks struct {
	Self             string `json:"self"`
	HTML             string `json:"html"`
	Download         string `json:"download"`
	DownloadLocation string `json:"download_location"`
}

// validate checks the fields the grid depends on.
func (p *Photo) validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("photo missing id")
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("photo %s has invalid dimensions %dx%d", p.ID, p.Width, p.Height)
	case p.URLs == nil:
		return fmt.Errorf("photo %s missing urls", p.ID)
	case p.URLs.Thumb == "":
		return fmt.Errorf("photo %s missing urls.thumb", p.ID)
	case p.URLs.Small == "":
		return fmt.Errorf("photo %s missing urls.small", p.ID)
	case p.User == nil || p.User.Name == nil:
		return fmt.Errorf("photo %s missing user.name", p.ID)
	}
	return nil
}

// ToRecord maps the wire shape to the record the grid renders.
// The viewer uses the small variant as its full image.
func (p *Photo) ToRecord() (domain.PhotoRecord, error) {
	if err := p.validate(); err != nil {
		return domain.PhotoRecord{}, err
	}
	description := ""
	if p.Description != nil {
		description = *p.Description
	}
	return domain.NewPhotoRecord(p.ID, p.URLs.Thumb, p.URLs.Small, p.Width, p.Height, *p.User.Name, description)
}
