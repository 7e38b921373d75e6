package config

type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleCallbackAddr() string
}

type Google struct {
	file *File
}

var _ GoogleConfig = Google{}

func (g Google) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", fileValue(g.file, func(f *File) string { return f.Google.ClientID }, ""))
}

func (g Google) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", fileValue(g.file, func(f *File) string { return f.Google.ClientSecret }, ""))
}

// GetGoogleCallbackAddr returns the loopback address the login callback listens on
func (g Google) GetGoogleCallbackAddr() string {
	return GetEnv("GOOGLE_CALLBACK_ADDR", fileValue(g.file, func(f *File) string { return f.Google.CallbackAddr }, "127.0.0.1:8765"))
}
