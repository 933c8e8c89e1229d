// Package avcdec drives an H.264 decode engine behind an OMX-style two-port
// buffer contract: compressed input units in, decoded output slots out.
//
// Key pieces include:
//   - Decoder: the decode loop, reference-frame pins per output slot,
//     output port reconfiguration, hardware to software engine fallback
//   - Component: a single goroutine event loop around a Decoder
//   - Engine: the decode engine contract, with native engines bound via purego
//   - RTPDepacketizer, FeedTrack and RTMPHandler: ingest from RTP, WebRTC
//     tracks and RTMP publishers
//
// # Architecture
//
//	Ingest: RTP/WebRTC/RTMP -> InputUnit -> Component.EmptyThisBuffer
//	Decode: input queue + free output slot -> Engine.Decode -> FillBufferDone
//	Reconfigure: PortSettingsChanged -> DisablePort -> (new slots) -> EnablePort
//
// # Native Libraries
//
// The engines load libomx_avcdec_hw_sprd and libomx_avcdec_sw_sprd at init.
// Set AVCDEC_LIB_PATH to the directory containing them, or
// LIBOMX_AVCDEC_HW_SPRD_PATH / LIBOMX_AVCDEC_SW_SPRD_PATH to a file. Without
// them, supply engines through Config.Engines.
//
// # Build Tags
//
//   - noavcnative: do not load the native engines
package avcdec
