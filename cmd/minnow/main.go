package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"minnow/cmd/minnow/bencode"
	"minnow/cmd/minnow/magnet"
	"minnow/cmd/minnow/peering"
	"minnow/cmd/minnow/torrent"
)

func init() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

func main() {
	logger := zap.L()
	if len(os.Args) < 2 {
		logger.Error("No command given")
		os.Exit(1)
	}
	command := os.Args[1]

	switch command {
	case "decode":
		if err := handleDecode(os.Args); err != nil {
			logger.Error("Failed to decode", zap.Error(err))
			os.Exit(1)
		}
	case "info":
		if err := handleInfo(os.Args); err != nil {
			logger.Error("Failed to get info", zap.Error(err))
			os.Exit(1)
		}
	case "peers":
		if err := handlePeers(os.Args); err != nil {
			logger.Error("Failed to get peers", zap.Error(err))
			os.Exit(1)
		}
	case "handshake":
		if err := handleHandshake(os.Args); err != nil {
			logger.Error("Failed to handshake", zap.Error(err))
			os.Exit(1)
		}
	case "download_piece":
		if err := handleDownloadPiece(os.Args); err != nil {
			logger.Error("Failed to download piece", zap.Error(err))
			os.Exit(1)
		}
	case "download":
		if err := handleDownload(os.Args); err != nil {
			logger.Error("Failed to download", zap.Error(err))
			os.Exit(1)
		}
	case "magnet_parse":
		if err := handleMagnetParse(os.Args); err != nil {
			logger.Error("Failed to parse magnet link", zap.Error(err))
			os.Exit(1)
		}
	default:
		logger.Error("Unknown command", zap.String("command", command))
		os.Exit(1)
	}
}

// Command handlers

func handleDecode(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: decode <bencoded-value>")
	}

	decoded, err := bencode.DecodeAll(args[2])
	if err != nil {
		return err
	}
	jsonOutput, _ := json.Marshal(decoded)
	fmt.Println(string(jsonOutput))
	return nil
}

func loadMetainfo(path string) (*torrent.Metainfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read torrent file: %w", err)
	}
	return torrent.Parse(data)
}

func handleInfo(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: info <torrent-file>")
	}

	meta, err := loadMetainfo(args[2])
	if err != nil {
		return err
	}

	infoHash, err := meta.InfoHash()
	if err != nil {
		return err
	}

	fmt.Printf("Tracker URL: %s\n", meta.Announce)
	fmt.Printf("Length: %d\n", meta.TotalLength())
	fmt.Printf("Info Hash: %x\n", infoHash)
	fmt.Printf("Piece Length: %d\n", meta.Info.PieceLength)
	fmt.Println("Piece Hashes:")
	for _, hash := range meta.PieceHashes() {
		fmt.Printf("%x\n", hash)
	}
	return nil
}

func handlePeers(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: peers <torrent-file>")
	}

	meta, err := loadMetainfo(args[2])
	if err != nil {
		return err
	}

	client, err := peering.NewClient(meta, peering.DefaultConfig)
	if err != nil {
		return err
	}

	for _, peer := range client.Peers() {
		fmt.Println(peer)
	}
	return nil
}

func handleHandshake(args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: handshake <torrent-file> <peer-address>")
	}

	meta, err := loadMetainfo(args[2])
	if err != nil {
		return err
	}

	infoHash, err := meta.InfoHash()
	if err != nil {
		return err
	}

	cfg := peering.DefaultConfig
	conn, err := net.DialTimeout("tcp", args[3], cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("connect to peer: %w", err)
	}
	defer conn.Close()

	remote, err := peering.DoHandshake(conn, infoHash, cfg.PeerID)
	if err != nil {
		return err
	}

	fmt.Printf("Peer ID: %x\n", remote.PeerID)
	return nil
}

func handleDownloadPiece(args []string) error {
	if len(args) != 6 || args[2] != "-o" {
		return fmt.Errorf("usage: download_piece -o <output-path> <torrent-file> <piece-index>")
	}
	outputPath := args[3]

	pieceIndex, err := strconv.Atoi(args[5])
	if err != nil {
		return fmt.Errorf("invalid piece index: %w", err)
	}

	meta, err := loadMetainfo(args[4])
	if err != nil {
		return err
	}

	client, err := peering.NewClient(meta, peering.DefaultConfig)
	if err != nil {
		return err
	}

	pieceData, err := client.DownloadPiece(pieceIndex)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, pieceData, 0644)
}

func handleDownload(args []string) error {
	if len(args) != 5 || args[2] != "-o" {
		return fmt.Errorf("usage: download -o <output-path> <torrent-file>")
	}
	outputPath := args[3]

	meta, err := loadMetainfo(args[4])
	if err != nil {
		return err
	}

	client, err := peering.NewClient(meta, peering.DefaultConfig)
	if err != nil {
		return err
	}

	fileData, err := client.Download()
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, fileData, 0644)
}

func handleMagnetParse(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: magnet_parse <magnet-link>")
	}

	link, err := magnet.Parse(args[2])
	if err != nil {
		return err
	}

	if len(link.Trackers) == 0 {
		return fmt.Errorf("no trackers found in magnet link")
	}

	fmt.Printf("Tracker URL: %s\n", link.Trackers[0])
	fmt.Printf("Info Hash: %s\n", link.InfoHash)
	return nil
}
