package peering

// Block is one request unit within a piece.
type Block struct {
	Begin  int
	Length int
}

// splitBlocks divides a piece into blocks of at most blockMax bytes. Every
// block has the maximum size except possibly the last.
func splitBlocks(pieceSize, blockMax int) []Block {
	blocks := make([]Block, 0, (pieceSize+blockMax-1)/blockMax)
	for begin := 0; begin < pieceSize; begin += blockMax {
		end := begin + blockMax
		if end > pieceSize {
			end = pieceSize
		}
		blocks = append(blocks, Block{Begin: begin, Length: end - begin})
	}
	return blocks
}
