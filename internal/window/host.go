package window

import (
	webview "github.com/webview/webview_go"
)

// Host abstracts one native webview window so the lifecycle can be exercised
// without a display server.
type Host interface {
	Navigate(url string)
	SetHTML(html string)
	SetTitle(title string)
	Init(js string)
	Eval(js string)
	Dispatch(fn func())
	Bind(name string, fn any) error
	Run()
	Terminate()
	Destroy()
}

const (
	defaultWidth  = 1280
	defaultHeight = 800
)

type webviewHost struct {
	w webview.WebView
}

// NewWebviewHost creates a native window. With debug set the underlying
// engine allows opening its inspector.
func NewWebviewHost(debug bool) Host {
	w := webview.New(debug)
	w.SetSize(defaultWidth, defaultHeight, webview.HintNone)
	return &webviewHost{w: w}
}

func (h *webviewHost) Navigate(url string)   { h.w.Navigate(url) }
func (h *webviewHost) SetHTML(html string)   { h.w.SetHtml(html) }
func (h *webviewHost) SetTitle(title string) { h.w.SetTitle(title) }
func (h *webviewHost) Init(js string)        { h.w.Init(js) }
func (h *webviewHost) Eval(js string)        { h.w.Eval(js) }
func (h *webviewHost) Dispatch(fn func())    { h.w.Dispatch(fn) }
func (h *webviewHost) Run()                  { h.w.Run() }
func (h *webviewHost) Terminate()            { h.w.Terminate() }
func (h *webviewHost) Destroy()              { h.w.Destroy() }

func (h *webviewHost) Bind(name string, fn any) error { return h.w.Bind(name, fn) }
