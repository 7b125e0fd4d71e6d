package playback

// Surface receives RGBA frames. Texture dimensions are tracked by the session which
// recreates the texture whenever they change.
type Surface interface {
	CreateTexture(width, height int) error
	DestroyTexture()
	UpdateTexture(b []byte, stride int) error
}
