// Command audioclient streams a WAV file to a running insights server as
// one session and prints the closed session record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "ai-session-insights-service/internal/api/grpc"
	"ai-session-insights-service/internal/pcm"
)

const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit mono PCM)")
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	keepOpen := flag.Bool("keep-open", false, "leave the session recording after the file ends")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	format, err := pcm.ReadWAVHeader(f)
	if err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	log.Printf("WAV file: channels=%d sampleRate=%d bitsPerSample=%d dataBytes=%d",
		format.Channels, format.SampleRate, format.BitsPerSample, format.DataLen)
	if format.SampleRate != pcm.SampleRate {
		log.Printf("Warning: Sample rate is %d Hz, server expects %d Hz", format.SampleRate, pcm.SampleRate)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverAddr)

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	started, err := client.StartSession(ctx)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	log.Printf("Session %s (alreadyRecording=%v)", started.SessionID, started.AlreadyRecording)

	stream, err := client.StreamAudio(ctx)
	if err != nil {
		log.Fatalf("Failed to create stream: %v", err)
	}

	// 100ms of 16-bit mono audio per chunk
	chunkSize := pcm.BytesFor(chunkIntervalMs*time.Millisecond, int(format.SampleRate))
	chunk := make([]byte, chunkSize)
	data := io.LimitReader(f, int64(format.DataLen))
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := io.ReadFull(data, chunk)
		if n > 0 {
			chunkNum++
			totalBytes += int64(n)
			if err := stream.Send(&grpcapi.AudioChunk{Audio: chunk[:n]}); err != nil {
				log.Fatalf("Failed to send chunk: %v", err)
			}
			if chunkNum%50 == 0 {
				log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, time.Since(startTime))

	ack, err := stream.CloseAndRecv()
	if err != nil {
		log.Fatalf("Failed to receive ack: %v", err)
	}
	log.Printf("Stream acknowledged: session=%s bytes=%d frames=%d", ack.SessionID, ack.Bytes, ack.Frames)

	if *keepOpen {
		return
	}

	log.Println("Stopping session, waiting for summary...")
	stopped, err := client.StopSession(ctx)
	if err != nil {
		log.Fatalf("Failed to stop session: %v", err)
	}
	if stopped.Record == nil {
		log.Println("No session was recording")
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stopped.Record); err != nil {
		log.Fatalf("Failed to print record: %v", err)
	}
}
