package resolver

// Media is the canonical resolution result. It is one of Video, PhotoSet or NotFound.
type Media interface {
	isMedia()
}

type Video struct {
	URL   string
	Title string
}

type Photo struct {
	URL     string
	Caption string
}

type PhotoSet struct {
	Items []Photo
	Title string
}

type NotFound struct{}

func (Video) isMedia()    {}
func (PhotoSet) isMedia() {}
func (NotFound) isMedia() {}

// Resolution pairs the media with the provider that produced it.
type Resolution struct {
	Media    Media
	Provider string
}

func (r Resolution) Found() bool {
	_, miss := r.Media.(NotFound)
	return r.Media != nil && !miss
}
