package service

import (
	"zkcommit/internal/binding"
	"zkcommit/internal/zkp"
)

func single(res *zkp.Result) CommitmentResponse {
	return CommitmentResponse{
		Commitment: zkp.EncodeHex(res.Commitments[0]),
		Proof:      zkp.EncodeHex(res.Proof),
		Verified:   res.Verified,
	}
}

func multi(res *zkp.Result) ProofResponse {
	return ProofResponse{
		Commitments: zkp.EncodeHexList(res.Commitments),
		Proof:       zkp.EncodeHex(res.Proof),
		Verified:    res.Verified,
	}
}

func (s *Service) txHash(body []byte) ([32]byte, []byte, error) {
	var req TxHashRequest
	if err := decode(body, &req); err != nil {
		return [32]byte{}, nil, err
	}
	secret, err := zkp.Decode32("tx_hash", req.TxHash)
	if err != nil {
		return [32]byte{}, nil, err
	}
	tag, err := zkp.DecodeTag(req.BindingTagHex)
	if err != nil {
		return [32]byte{}, nil, err
	}
	return secret, tag, nil
}

func (s *Service) proveKnowledge(body []byte) (any, error) {
	secret, tag, err := s.txHash(body)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ProveKnowledge(secret, tag)
	if err != nil {
		return nil, err
	}
	return multi(res), nil
}

func (s *Service) commitTxHash(body []byte) (any, error) {
	secret, tag, err := s.txHash(body)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ProveKnowledge(secret, tag)
	if err != nil {
		return nil, err
	}
	return single(res), nil
}

func (s *Service) proveEquality(body []byte) (any, error) {
	var req EqualityRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	secret, err := zkp.Decode32("tx_hash", req.TxHash)
	if err != nil {
		return nil, err
	}
	target, err := zkp.Decode32("target_hex", req.TargetHex)
	if err != nil {
		return nil, err
	}
	tag, err := zkp.DecodeTag(req.BindingTagHex)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ProveEquality(secret, target, tag)
	if err != nil {
		return nil, err
	}
	return single(res), nil
}

func (s *Service) proveWideRange(body []byte) (any, error) {
	secret, tag, err := s.txHash(body)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ProveWideRange(secret, tag)
	if err != nil {
		return nil, err
	}
	return multi(res), nil
}

func (s *Service) proveWideKnowledge(body []byte) (any, error) {
	secret, tag, err := s.txHash(body)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ProveWideKnowledge(secret, tag)
	if err != nil {
		return nil, err
	}
	return multi(res), nil
}

func (s *Service) valueRequest(body []byte, needBlinding bool) (*zkp.Result, error) {
	var req ValueRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	if req.Value == nil {
		return nil, badRequestf("value is required")
	}
	bits, err := s.bits(req.BitWidth)
	if err != nil {
		return nil, err
	}
	var blinding *[32]byte
	if req.BlindingHex != "" {
		b, err := zkp.Decode32("blinding_hex", req.BlindingHex)
		if err != nil {
			return nil, err
		}
		blinding = &b
	} else if needBlinding {
		return nil, badRequestf("blinding_hex is required")
	}
	tag, err := zkp.DecodeTag(req.BindingTagHex)
	if err != nil {
		return nil, err
	}
	return s.engine.ProveRange(*req.Value, blinding, tag, bits)
}

func (s *Service) proveRange(body []byte) (any, error) {
	res, err := s.valueRequest(body, false)
	if err != nil {
		return nil, err
	}
	return single(res), nil
}

func (s *Service) proveRangeBlinded(body []byte) (any, error) {
	res, err := s.valueRequest(body, true)
	if err != nil {
		return nil, err
	}
	return single(res), nil
}

// verifyInput decodes the hex fields shared by every verify operation.
type verifyInput struct {
	req         VerifyRequest
	commitments [][]byte
	proof       []byte
	tag         []byte
}

func (s *Service) verifyInput(body []byte, wide bool) (*verifyInput, error) {
	in := &verifyInput{}
	if err := decode(body, &in.req); err != nil {
		return nil, err
	}
	var err error
	if wide {
		in.commitments = make([][]byte, len(in.req.Commitments))
		for i, h := range in.req.Commitments {
			c, err := zkp.Decode32("commitments", h)
			if err != nil {
				return nil, err
			}
			in.commitments[i] = c[:]
		}
	} else {
		c, err := zkp.Decode32("commitment", in.req.Commitment)
		if err != nil {
			return nil, err
		}
		in.commitments = [][]byte{c[:]}
	}
	if in.proof, err = s.hex("proof", in.req.Proof); err != nil {
		return nil, err
	}
	if in.tag, err = zkp.DecodeTag(in.req.BindingTagHex); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Service) verifyKnowledge(body []byte) (any, error) {
	in, err := s.verifyInput(body, false)
	if err != nil {
		return nil, err
	}
	return VerifyResponse{Verified: s.engine.VerifyKnowledge(in.commitments[0], in.proof, in.tag)}, nil
}

func (s *Service) verifyEquality(body []byte) (any, error) {
	in, err := s.verifyInput(body, false)
	if err != nil {
		return nil, err
	}
	target, err := zkp.Decode32("target_hex", in.req.TargetHex)
	if err != nil {
		return nil, err
	}
	return VerifyResponse{Verified: s.engine.VerifyEquality(in.commitments[0], in.proof, target, in.tag)}, nil
}

func (s *Service) verifyWideRange(body []byte) (any, error) {
	in, err := s.verifyInput(body, true)
	if err != nil {
		return nil, err
	}
	return VerifyResponse{Verified: s.engine.VerifyWideRange(in.commitments, in.proof, in.tag)}, nil
}

func (s *Service) verifyWideKnowledge(body []byte) (any, error) {
	in, err := s.verifyInput(body, true)
	if err != nil {
		return nil, err
	}
	return VerifyResponse{Verified: s.engine.VerifyWideKnowledge(in.commitments, in.proof, in.tag)}, nil
}

func (s *Service) verifyRange(body []byte) (any, error) {
	in, err := s.verifyInput(body, false)
	if err != nil {
		return nil, err
	}
	bits, err := s.bits(in.req.BitWidth)
	if err != nil {
		return nil, err
	}
	return VerifyResponse{Verified: s.engine.VerifyRange(in.commitments[0], in.proof, in.tag, bits)}, nil
}

func (s *Service) bindingTag(body []byte) (any, error) {
	var ctx binding.VCContext
	if err := decode(body, &ctx); err != nil {
		return nil, err
	}
	tag, err := binding.VCTag(ctx)
	if err != nil {
		return nil, err
	}
	return TagResponse{BindingTagHex: zkp.EncodeHex(tag[:])}, nil
}

func (s *Service) txBindingTag(body []byte) (any, error) {
	var ctx binding.TxContext
	if err := decode(body, &ctx); err != nil {
		return nil, err
	}
	tag, err := binding.TxHashTag(ctx)
	if err != nil {
		return nil, err
	}
	return TagResponse{BindingTagHex: zkp.EncodeHex(tag[:])}, nil
}

func (s *Service) deterministicBlinding(body []byte) (any, error) {
	var req BlindingRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	b, err := binding.DeterministicBlinding(req.ProductAddress, req.SellerAddress)
	if err != nil {
		return nil, err
	}
	return BlindingResponse{BlindingHex: zkp.EncodeHex(b[:])}, nil
}
