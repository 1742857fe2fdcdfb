//  The MIT License
//
//  Copyright (c) 2019 Proton Technologies AG
//
//  Permission is hereby granted, free of charge, to any person obtaining a copy
//  of this software and associated documentation files (the "Software"), to deal
//  in the Software without restriction, including without limitation the rights
//  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
//  copies of the Software, and to permit persons to whom the Software is
//  furnished to do so, subject to the following conditions:
//
//  The above copyright notice and this permission notice shall be included in
//  all copies or substantial portions of the Software.
//
//  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
//  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
//  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
//  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
//  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
//  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
//  THE SOFTWARE.

package srp

import "strings"

// CheckUsername compares the local username with the one the server
// asserted. Versions 3 and up bind the identity through the salt and are
// always accepted. Version 2 ignores case and the '.', '-' and '_'
// separators, older versions only ignore case.
func CheckUsername(version int, localUsername, serverUsername string) (bool, error) {
	if version >= 3 {
		return true, nil
	}

	if localUsername == "" || serverUsername == "" {
		return false, ErrMissingUsername
	}

	if version == 2 {
		return cleanUserName(localUsername) == cleanUserName(serverUsername), nil
	}

	return strings.ToLower(localUsername) == strings.ToLower(serverUsername), nil
}
