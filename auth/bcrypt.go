package auth

import "golang.org/x/crypto/bcrypt"

// DefaultVerifier is the stock Verifier, backed by bcrypt. Teacher does
// not carry a password-hashing library — it never authenticates end
// users — but golang.org/x/crypto is already a transitive dependency
// across the retrieval pack, so this promotes it to a direct one rather
// than introducing something new.
type DefaultVerifier struct {
	Cost int // 0 selects bcrypt.DefaultCost
}

func (v DefaultVerifier) cost() int {
	if v.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return v.Cost
}

func (v DefaultVerifier) Verify(stored, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}

func (v DefaultVerifier) Hash(candidate string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(candidate), v.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}
