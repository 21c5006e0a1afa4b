// Package illustration binds exercise names from training sections to
// display images.
package illustration

import "unicode/utf16"

// DefaultGallery is the stock set of exercise illustrations.
var DefaultGallery = []string{
	"https://i.top4top.io/p_3650ji51o1.png",
	"https://k.top4top.io/p_3650zzsce1.png",
	"https://b.top4top.io/p_3650u0xcs1.png",
	"https://d.top4top.io/p_3650ufsba1.png",
	"https://j.top4top.io/p_3650wcsey1.png",
	"https://c.top4top.io/p_3650nh0a01.png",
	"https://e.top4top.io/p_36508l2j51.png",
	"https://k.top4top.io/p_3650mxvwn1.png",
	"https://a.top4top.io/p_3650fk57m1.png",
	"https://d.top4top.io/p_3650ozdi01.png",
	"https://g.top4top.io/p_3650p17sf1.png",
	"https://l.top4top.io/p_365053nf31.png",
	"https://d.top4top.io/p_36503hdjr1.png",
	"https://f.top4top.io/p_3650zvrhm1.png",
	"https://e.top4top.io/p_3650vkzjt1.png",
	"https://g.top4top.io/p_3650wlsnh1.png",
}

// NameHash is a 31-multiplier rolling hash over the UTF-16 code units of
// name, computed in wrapping 32-bit arithmetic and folded to a non-negative
// value. The same name hashes identically across processes.
func NameHash(name string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(name)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

// GalleryIndex returns the gallery slot for name.
func GalleryIndex(name string, size int) int {
	if size <= 0 {
		return -1
	}
	return int(NameHash(name) % uint32(size))
}
