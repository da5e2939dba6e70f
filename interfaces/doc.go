// Package interfaces defines the abstractions shared between frame sources,
// frame writers and the surrounding tooling.
//
// [FrameWriter] is the single entry point for captured frames. Every writer
// accepts a borrowed buffer of 4-byte pixels described by width, height and
// row pitch:
//
//	writer, err := factory.NewFrameWriterFactory().CreateFrameWriter(cfg)
//	if err != nil {
//	    return err
//	}
//	defer writer.Close()
//	err = writer.WriteFrame(frame.Width, frame.Height, frame.RowPitch, frame.Data)
//
// Writers that count what they send also implement [StatsProvider], which
// the control server and the RTCP reporter read from other goroutines.
//
// [FrameWriterConfig] carries the settings for every writer kind; fields a
// kind does not use are ignored.
package interfaces
