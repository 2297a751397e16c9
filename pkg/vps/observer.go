package vps

// RecognitionObserver receives speech recognition results of a session.
type RecognitionObserver interface {
	RecognitionPartialResult(s *Session, text string)
	RecognitionFinished(s *Session, canceled bool)
	RecognitionError(s *Session, err error)
}

// DialogObserver receives the assistant's textual replies.
type DialogObserver interface {
	DialogText(s *Session, text string)
	// DialogPayload receives a service payload, usually JSON.
	DialogPayload(s *Session, payload string)
	DialogFinished(s *Session, canceled bool)
	DialogError(s *Session, err error)
}

// VocalizationObserver receives synthesized voice.
type VocalizationObserver interface {
	VocalizationVoice(s *Session, data []byte)
	VocalizationFinished(s *Session, canceled bool)
	VocalizationError(s *Session, err error)
}

// ObserverFuncs adapts plain functions to all three observer interfaces.
// Nil fields are skipped.
type ObserverFuncs struct {
	OnPartialResult        func(s *Session, text string)
	OnRecognitionFinished  func(s *Session, canceled bool)
	OnRecognitionError     func(s *Session, err error)
	OnText                 func(s *Session, text string)
	OnPayload              func(s *Session, payload string)
	OnDialogFinished       func(s *Session, canceled bool)
	OnDialogError          func(s *Session, err error)
	OnVoice                func(s *Session, data []byte)
	OnVocalizationFinished func(s *Session, canceled bool)
	OnVocalizationError    func(s *Session, err error)
}

func (f ObserverFuncs) RecognitionPartialResult(s *Session, text string) {
	if f.OnPartialResult != nil {
		f.OnPartialResult(s, text)
	}
}

func (f ObserverFuncs) RecognitionFinished(s *Session, canceled bool) {
	if f.OnRecognitionFinished != nil {
		f.OnRecognitionFinished(s, canceled)
	}
}

func (f ObserverFuncs) RecognitionError(s *Session, err error) {
	if f.OnRecognitionError != nil {
		f.OnRecognitionError(s, err)
	}
}

func (f ObserverFuncs) DialogText(s *Session, text string) {
	if f.OnText != nil {
		f.OnText(s, text)
	}
}

func (f ObserverFuncs) DialogPayload(s *Session, payload string) {
	if f.OnPayload != nil {
		f.OnPayload(s, payload)
	}
}

func (f ObserverFuncs) DialogFinished(s *Session, canceled bool) {
	if f.OnDialogFinished != nil {
		f.OnDialogFinished(s, canceled)
	}
}

func (f ObserverFuncs) DialogError(s *Session, err error) {
	if f.OnDialogError != nil {
		f.OnDialogError(s, err)
	}
}

func (f ObserverFuncs) VocalizationVoice(s *Session, data []byte) {
	if f.OnVoice != nil {
		f.OnVoice(s, data)
	}
}

func (f ObserverFuncs) VocalizationFinished(s *Session, canceled bool) {
	if f.OnVocalizationFinished != nil {
		f.OnVocalizationFinished(s, canceled)
	}
}

func (f ObserverFuncs) VocalizationError(s *Session, err error) {
	if f.OnVocalizationError != nil {
		f.OnVocalizationError(s, err)
	}
}

// observerSet is a snapshot of a session's observers.
type observerSet struct {
	recognition  RecognitionObserver
	dialog       DialogObserver
	vocalization VocalizationObserver
}

func (o observerSet) finished(s *Session, canceled bool) {
	if o.recognition != nil {
		o.recognition.RecognitionFinished(s, canceled)
	}
	if o.dialog != nil {
		o.dialog.DialogFinished(s, canceled)
	}
	if o.vocalization != nil {
		o.vocalization.VocalizationFinished(s, canceled)
	}
}

func (o observerSet) failed(s *Session, err error) {
	if o.recognition != nil {
		o.recognition.RecognitionError(s, err)
	}
	if o.dialog != nil {
		o.dialog.DialogError(s, err)
	}
	if o.vocalization != nil {
		o.vocalization.VocalizationError(s, err)
	}
}
