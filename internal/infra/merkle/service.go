package merkle

type Service struct{}

func (s *Service) BuildTree(leaves [][]byte) ([]byte, [][][]byte, error) {
	return BuildTree(leaves)
}

func (s *Service) VerifyProof(leafHash []byte, path [][]byte, expectedRoot []byte) (bool, error) {
	return VerifyProof(leafHash, path, expectedRoot)
}
