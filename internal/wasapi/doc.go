// Package wasapi provides the Windows COM/WASAPI bindings the capture
// engine needs that github.com/moutend/go-wca does not carry on its own:
// process-scoped loopback activation (ActivateAudioInterfaceAsync) and the
// completion-callback object that protocol requires. Everything else (the
// device enumerator, audio client, capture client, session manager) is
// go-wca plus github.com/go-ole/go-ole for the underlying COM plumbing.
package wasapi
