// Package peering implements the peer wire protocol: the 68-byte
// handshake, length-prefixed message framing and the block-request loop
// that downloads and verifies pieces.
package peering

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gosuri/uiprogress"

	"minnow/cmd/minnow/torrent"
	"minnow/cmd/minnow/tracker"
)

// Client downloads pieces of one torrent from its tracker-reported peers.
type Client struct {
	meta     *torrent.Metainfo
	cfg      Config
	infoHash [20]byte
	peers    []tracker.Peer
}

// NewClient announces to the torrent's tracker and prepares a client over
// the returned peer list.
func NewClient(meta *torrent.Metainfo, cfg Config) (*Client, error) {
	infoHash, err := meta.InfoHash()
	if err != nil {
		return nil, err
	}

	resp, err := tracker.Announce(meta.Announce, tracker.Request{
		InfoHash: infoHash,
		PeerID:   cfg.PeerID,
		Port:     cfg.Port,
		Left:     meta.TotalLength(),
		Compact:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Peers) == 0 {
		return nil, fmt.Errorf("tracker returned no peers")
	}

	return &Client{
		meta:     meta,
		cfg:      cfg,
		infoHash: infoHash,
		peers:    resp.Peers,
	}, nil
}

// Peers returns the tracker-reported peer list.
func (c *Client) Peers() []tracker.Peer {
	return c.peers
}

// DownloadPiece fetches and verifies one piece, trying each known peer in
// turn until one serves it.
func (c *Client) DownloadPiece(pieceIndex int) ([]byte, error) {
	var lastErr error
	for _, peer := range c.peers {
		data, err := c.downloadPieceFromPeer(peer, pieceIndex)
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, fmt.Errorf("no peer served piece %d: %w", pieceIndex, lastErr)
}

func (c *Client) downloadPieceFromPeer(peer tracker.Peer, pieceIndex int) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", peer.String(), c.cfg.DialTimeout)
	if err != nil {
		return nil, wrapNetErr(err, "connect to peer")
	}
	defer conn.Close()

	if _, err := DoHandshake(conn, c.infoHash, c.cfg.PeerID); err != nil {
		return nil, err
	}

	return c.downloadPiece(conn, pieceIndex)
}

// downloadPiece runs the post-handshake sequence on an open connection:
// await bitfield, declare interest, await unchoke, then request each block
// in offset order and verify the reassembled piece.
func (c *Client) downloadPiece(conn net.Conn, pieceIndex int) ([]byte, error) {
	pieceSize, err := c.meta.PieceSize(pieceIndex)
	if err != nil {
		return nil, err
	}

	// the first message after the handshake must be the peer's bitfield
	msg, err := c.readMessage(conn)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ID != Bitfield {
		return nil, fmt.Errorf("expected bitfield, got %s: %w", msg, ErrProtocolViolation)
	}

	if err := c.writeMessage(conn, &Message{ID: Interested}); err != nil {
		return nil, err
	}

	msg, err = c.readMessage(conn)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ID != Unchoke {
		return nil, fmt.Errorf("expected unchoke, got %s: %w", msg, ErrProtocolViolation)
	}
	if len(msg.Payload) != 0 {
		return nil, fmt.Errorf("unchoke with %d-byte payload: %w", len(msg.Payload), ErrProtocolViolation)
	}

	assembled := make([]byte, 0, pieceSize)
	for _, blk := range splitBlocks(pieceSize, c.cfg.BlockSize) {
		req := FormatRequest(pieceIndex, blk.Begin, blk.Length)
		if err := c.writeMessage(conn, req); err != nil {
			return nil, err
		}

		msg, err := c.readMessage(conn)
		if err != nil {
			return nil, err
		}
		for msg == nil { // keep-alives may interleave with responses
			msg, err = c.readMessage(conn)
			if err != nil {
				return nil, err
			}
		}

		block, err := ParsePiece(pieceIndex, blk.Begin, blk.Length, msg)
		if err != nil {
			return nil, err
		}
		assembled = append(assembled, block...)
	}

	expected := c.meta.PieceHashes()[pieceIndex]
	if got := sha1.Sum(assembled); !bytes.Equal(got[:], expected[:]) {
		return nil, fmt.Errorf("piece %d hash %x, expected %x: %w", pieceIndex, got, expected, ErrCorruptPiece)
	}

	return assembled, nil
}

func (c *Client) readMessage(conn net.Conn) (*Message, error) {
	if c.cfg.RequestTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.cfg.RequestTimeout))
	}
	return ReadMessage(conn)
}

func (c *Client) writeMessage(conn net.Conn, m *Message) error {
	if c.cfg.RequestTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	}
	return WriteMessage(conn, m)
}

type pieceWork struct {
	index int
	peer  tracker.Peer
}

type pieceResult struct {
	index int
	data  []byte
	err   error
}

// Download fetches the whole torrent, spreading pieces across the known
// peers with one worker per peer.
func (c *Client) Download() ([]byte, error) {
	totalPieces := c.meta.NumPieces()
	results := make(chan pieceResult, totalPieces)

	workChan := c.distributePieceWork(totalPieces)
	c.startWorkers(workChan, results)

	return c.assembleFile(results, totalPieces)
}

func (c *Client) distributePieceWork(totalPieces int) chan pieceWork {
	workChan := make(chan pieceWork, totalPieces)
	for i := 0; i < totalPieces; i++ {
		workChan <- pieceWork{index: i, peer: c.peers[i%len(c.peers)]}
	}
	close(workChan)
	return workChan
}

func (c *Client) startWorkers(workChan chan pieceWork, results chan pieceResult) {
	var workers sync.WaitGroup
	for i := 0; i < len(c.peers); i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for work := range workChan {
				data, err := c.downloadPieceFromPeer(work.peer, work.index)
				results <- pieceResult{index: work.index, data: data, err: err}
			}
		}()
	}

	go func() {
		workers.Wait()
		close(results)
	}()
}

func (c *Client) progressBar(totalPieces int, done *int) *uiprogress.Bar {
	uiprogress.Start()
	bar := uiprogress.AddBar(totalPieces)
	bar.AppendCompleted()
	bar.AppendFunc(func(b *uiprogress.Bar) string {
		return "pieces: " + strconv.Itoa(*done) + "/" + strconv.Itoa(totalPieces)
	})
	bar.AppendElapsed()
	return bar
}

func (c *Client) assembleFile(results chan pieceResult, totalPieces int) ([]byte, error) {
	totalLength := c.meta.TotalLength()
	pieceLength := c.meta.Info.PieceLength
	fileData := make([]byte, totalLength)

	done := 0
	var bar *uiprogress.Bar
	if c.cfg.ShowProgress {
		bar = c.progressBar(totalPieces, &done)
		defer uiprogress.Stop()
	}

	for result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("download piece %d: %w", result.index, result.err)
		}
		copy(fileData[result.index*pieceLength:], result.data)
		done++
		if bar != nil {
			bar.Incr()
		}
	}

	// every worker verified its own pieces; re-check the assembled file as
	// a whole before handing it back
	hashes := c.meta.PieceHashes()
	for pieceIndex := 0; pieceIndex < totalPieces; pieceIndex++ {
		start := pieceIndex * pieceLength
		end := start + pieceLength
		if end > totalLength {
			end = totalLength
		}
		got := sha1.Sum(fileData[start:end])
		if !bytes.Equal(got[:], hashes[pieceIndex][:]) {
			return nil, fmt.Errorf("assembled piece %d: %w", pieceIndex, ErrCorruptPiece)
		}
	}

	return fileData, nil
}
