// Package domain contains the value types shared by every subcast layer.
//
// It has no dependencies on infrastructure (transport, drawing, logging) and
// defines the vocabulary the channel adapter speaks:
//
//   - [Command]: tagged variants for application messages (caption fragments,
//     clears, visibility toggles, acknowledgments and loading-screen control)
//   - [PlayerEvent]: host player lifecycle notifications
//   - [DataRequest]: the outbound request for the next caption window
//   - sentinel errors checked with errors.Is
package domain
