// Package audio connects the live session to the sound card.
//
// A Source yields fixed-size chunks of 16 kHz mono PCM16 from the microphone.
// A Sink plays 24 kHz mono PCM16 model speech. Both are backed by PortAudio
// blocking streams; reads and writes block on the device and are expected to
// run off the session's coordination goroutine.
//
// # Usage Example
//
//	mic, err := audio.OpenMicrophone(audio.DefaultMicrophoneConfig())
//	if err != nil {
//	    return err
//	}
//	defer mic.Close()
//
//	for {
//	    pcm, err := mic.Read(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    send(pcm)
//	}
package audio
